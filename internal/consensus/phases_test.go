package consensus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/chain"
	"github.com/stakepbft/stakepbft/internal/consensus"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/stake"
)

type identity struct {
	id   string
	priv *cryptoutil.BLSPrivateKey
	pub  *cryptoutil.BLSPublicKey
}

func newIdentity(t *testing.T) identity {
	t.Helper()
	priv, pub, err := cryptoutil.GenerateBLSKeyPair()
	if err != nil {
		t.Fatalf("GenerateBLSKeyPair: %v", err)
	}
	return identity{id: bytesToHex(pub.Bytes()), priv: priv, pub: pub}
}

func bytesToHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func newState(t *testing.T, self identity, validators []identity, primary identity) *consensus.State {
	t.Helper()
	bc, err := chain.New()
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	s := consensus.NewState(self.id, self.priv, bc)
	for _, v := range validators {
		s.Validators = append(s.Validators, stake.Validator{NodeID: v.id, PublicKey: v.id})
	}
	s.Primary = []stake.Validator{{NodeID: primary.id, PublicKey: primary.id}}
	return s
}

func TestPrePreparePhase_OnlyPrimaryBroadcasts(t *testing.T) {
	primary := newIdentity(t)
	other := newIdentity(t)

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	status := broker.NewConsumer("Status")
	preprepare := broker.NewConsumer("Preprepare")
	defer status.Close()
	defer preprepare.Close()

	ctx := context.Background()

	primaryState := newState(t, primary, []identity{primary, other}, primary)
	block, err := consensus.PrePreparePhase(ctx, primaryState, nil, producer)
	require.NoError(t, err)
	assert.EqualValues(t, 1, block.Index)

	msg, err := preprepare.Poll(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg, "primary should have broadcast a PrePrepare message")

	otherState := newState(t, other, []identity{primary, other}, primary)
	_, err = consensus.PrePreparePhase(ctx, otherState, nil, producer)
	require.NoError(t, err)
	msg, err = preprepare.Poll(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "a non-primary must not broadcast a PrePrepare message")
}

func TestPreparePhase_NonValidatorSkips(t *testing.T) {
	primary := newIdentity(t)
	bystander := newIdentity(t)

	bc, err := chain.New()
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	s := consensus.NewState(bystander.id, bystander.priv, bc)
	s.Validators = nil // bystander is not a validator
	s.Primary = []stake.Validator{{NodeID: primary.id}}

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()

	err = consensus.PreparePhase(context.Background(), s, nil, nil, producer)
	assert.NoError(t, err, "PreparePhase for a non-validator should be a no-op")
}

func TestPreparePhase_AcceptsMatchingPrePrepare(t *testing.T) {
	primary := newIdentity(t)
	validator := newIdentity(t)

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	prepareConsumer := broker.NewConsumer("Prepare")
	defer prepareConsumer.Close()

	ctx := context.Background()

	primaryState := newState(t, primary, []identity{primary, validator}, primary)
	block, err := consensus.PrePreparePhase(ctx, primaryState, nil, producer)
	require.NoError(t, err)
	preprepareMsg, err := consensus.NewNodeMessage(primary.priv, primary.id, block, consensus.PrePrepare, 0)
	require.NoError(t, err)

	validatorState := newState(t, validator, []identity{primary, validator}, primary)
	_, err = consensus.PrePreparePhase(ctx, validatorState, nil, producer)
	require.NoError(t, err)

	pkeyStore := map[string]*cryptoutil.BLSPublicKey{primary.id: primary.pub}
	err = consensus.PreparePhase(ctx, validatorState, pkeyStore, []consensus.NodeMessage{preprepareMsg}, producer)
	require.NoError(t, err)

	msg, err := prepareConsumer.Poll(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg, "validator should have broadcast a Prepare message")
}

func TestPreparePhase_RejectsWrongPhaseTag(t *testing.T) {
	primary := newIdentity(t)
	validator := newIdentity(t)
	bc, _ := chain.New()
	s := consensus.NewState(validator.id, validator.priv, bc)
	s.Validators = []stake.Validator{{NodeID: validator.id}}
	s.Primary = []stake.Validator{{NodeID: primary.id}}
	s.BlockStaging = []chain.Block{{Index: 1}}

	badMsg, err := consensus.NewNodeMessage(primary.priv, primary.id, chain.Block{Index: 1}, consensus.Commit, 0)
	require.NoError(t, err)

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	pkeyStore := map[string]*cryptoutil.BLSPublicKey{primary.id: primary.pub}

	err = consensus.PreparePhase(context.Background(), s, pkeyStore, []consensus.NodeMessage{badMsg}, producer)
	assert.ErrorIs(t, err, consensus.ErrWrongPhaseTag)
}

func fourValidatorSetup(t *testing.T) (self identity, validators []identity) {
	t.Helper()
	self = newIdentity(t)
	validators = []identity{self, newIdentity(t), newIdentity(t), newIdentity(t)}
	return
}

func TestCommitPhase_CommitsOnStrictMajority(t *testing.T) {
	self, validators := fourValidatorSetup(t)
	bc, err := chain.New()
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	s := consensus.NewState(self.id, self.priv, bc)
	for _, v := range validators {
		s.Validators = append(s.Validators, stake.Validator{NodeID: v.id})
	}

	tip, err := bc.Tip()
	if err != nil {
		t.Fatalf("Tip: %v", err)
	}
	block, err := chain.NewBlock(nil, tip.Hash, tip.Index+1)
	if err != nil {
		t.Fatalf("chain.NewBlock: %v", err)
	}

	pkeyStore := make(map[string]*cryptoutil.BLSPublicKey)
	var prepareMsgs []consensus.NodeMessage
	for _, v := range validators {
		pkeyStore[v.id] = v.pub
		msg, err := consensus.NewNodeMessage(v.priv, v.id, block, consensus.Prepare, 0)
		require.NoError(t, err)
		prepareMsgs = append(prepareMsgs, msg)
	}

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()

	ok, err := consensus.CommitPhase(context.Background(), s, pkeyStore, prepareMsgs, producer)
	require.NoError(t, err)
	assert.True(t, ok, "CommitPhase() verified = false on a freshly committed two-block chain")
	assert.Equal(t, 2, s.Chain.Len())
}

func TestCommitPhase_ByzantineThresholdExceeded(t *testing.T) {
	self, validators := fourValidatorSetup(t)
	bc, err := chain.New()
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	s := consensus.NewState(self.id, self.priv, bc)
	for _, v := range validators {
		s.Validators = append(s.Validators, stake.Validator{NodeID: v.id})
	}

	block, err := chain.NewBlock(nil, "", 1)
	if err != nil {
		t.Fatalf("chain.NewBlock: %v", err)
	}

	pkeyStore := map[string]*cryptoutil.BLSPublicKey{self.id: self.pub}
	msg, err := consensus.NewNodeMessage(self.priv, self.id, block, consensus.Prepare, 0)
	require.NoError(t, err)

	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()

	// 4 validators, only 1 Prepare message: faulty = 3 > (4-1)/3 = 1.
	_, err = consensus.CommitPhase(context.Background(), s, pkeyStore, []consensus.NodeMessage{msg}, producer)
	assert.ErrorIs(t, err, consensus.ErrByzantineThreshold)
}
