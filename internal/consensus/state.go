package consensus

import (
	"sync"

	"github.com/stakepbft/stakepbft/internal/chain"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/stake"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// Phase names the node's position in the per-round state machine (spec
// §4.4's "Idle -> PrePreparing -> Preparing -> Committing -> Done").
type Phase string

const (
	Idle         Phase = "Idle"
	PrePreparing Phase = "PrePreparing"
	Preparing    Phase = "Preparing"
	Committing   Phase = "Committing"
	Done         Phase = "Done"
)

// State is the consensus-relevant slice of a node's in-memory state: its
// identity, chain, and the round's validator/primary/staging bookkeeping.
// It is guarded by a mutex because the round orchestration
// (internal/node/round.go) runs concurrent listener goroutines alongside
// the synchronous phase-emission work.
type State struct {
	mu sync.Mutex

	ID         string
	PrivateKey *cryptoutil.BLSPrivateKey
	Chain      *chain.BlockChain

	Phase      Phase
	Validators []stake.Validator
	Primary    []stake.Validator

	// MsgIdx tracks the per-phase sequence number this node has emitted:
	// index 0 PrePrepare, 1 Prepare, 2 Commit.
	MsgIdx [3]int

	Staging      []txn.Transaction
	BlockStaging []chain.Block
}

// NewState seeds a fresh round-zero State around an already-initialized
// chain and key pair.
func NewState(id string, priv *cryptoutil.BLSPrivateKey, bc *chain.BlockChain) *State {
	return &State{ID: id, PrivateKey: priv, Chain: bc, Phase: Idle}
}

// IsPrimary reports whether this node is the elected primary for the round.
func (s *State) IsPrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.Primary {
		if v.NodeID == s.ID {
			return true
		}
	}
	return false
}

// IsValidator reports whether this node is a member of the round's
// validator set.
func (s *State) IsValidator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.Validators {
		if v.NodeID == s.ID {
			return true
		}
	}
	return false
}

func (s *State) isPrimarySender(senderID string) bool {
	for _, v := range s.Primary {
		if v.NodeID == senderID {
			return true
		}
	}
	return false
}

func (s *State) isValidatorSender(senderID string) bool {
	for _, v := range s.Validators {
		if v.NodeID == senderID {
			return true
		}
	}
	return false
}

func (s *State) pushBlockStaging(b chain.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BlockStaging = append(s.BlockStaging, b)
}

func (s *State) lastStagedBlock() (chain.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.BlockStaging) == 0 {
		return chain.Block{}, false
	}
	return s.BlockStaging[len(s.BlockStaging)-1], true
}

func (s *State) stagedBlockAt(idx int) (chain.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.BlockStaging) {
		return chain.Block{}, false
	}
	return s.BlockStaging[idx], true
}

func (s *State) nextSeqNum(phase int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.MsgIdx[phase]
	s.MsgIdx[phase] = n + 1
	return n
}
