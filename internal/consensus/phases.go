package consensus

import (
	"context"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/chain"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// PrePreparePhase stages a candidate block built from pool on top of the
// node's current chain tip. Every node stages the same candidate; only the
// primary broadcasts it. MsgIdx[0] advances regardless of whether this node
// is the primary, keeping each node's own round counter in step.
func PrePreparePhase(ctx context.Context, s *State, pool []txn.Transaction, producer busclient.Producer) (chain.Block, error) {
	tip, err := s.Chain.Tip()
	if err != nil {
		return chain.Block{}, err
	}
	block, err := chain.NewBlock(pool, tip.Hash, tip.Index+1)
	if err != nil {
		return chain.Block{}, err
	}

	s.mu.Lock()
	s.Staging = pool
	s.mu.Unlock()

	isPrimary := s.IsPrimary()
	seq := s.nextSeqNum(0)

	if isPrimary {
		msg, err := NewNodeMessage(s.PrivateKey, s.ID, block, PrePrepare, seq)
		if err != nil {
			return chain.Block{}, err
		}
		s.pushBlockStaging(block)
		if err := Broadcast(ctx, producer, s.ID, "Preprepare", msg); err != nil {
			return chain.Block{}, err
		}
	} else {
		s.pushBlockStaging(block)
	}

	return block, nil
}

// PreparePhase validates every collected PrePrepare message against the
// node's own staged candidate and, once satisfied, broadcasts a signed
// Prepare. Non-validators take no part in this phase.
func PreparePhase(ctx context.Context, s *State, pkeyStore map[string]*cryptoutil.BLSPublicKey, preprepareMsgs []NodeMessage, producer busclient.Producer) error {
	if !s.IsValidator() {
		return nil
	}

	for _, msg := range preprepareMsgs {
		isLeader := s.isPrimarySender(msg.SenderID)
		isPrePrepareTag := msg.MsgType == PrePrepare

		pub, ok := pkeyStore[msg.SenderID]
		if !ok {
			return fatal(ErrUnknownSigner)
		}
		verified, err := msg.Verify(pub)
		if err != nil {
			return err
		}

		switch {
		case isLeader && isPrePrepareTag && verified:
			last, ok := s.lastStagedBlock()
			if !ok || !last.Equal(msg.Block) {
				return fatal(ErrBlockMismatch)
			}
			toSend, ok := s.stagedBlockAt(msg.SeqNum)
			if !ok {
				return fatal(ErrBlockMismatch)
			}

			seq := s.nextSeqNum(1)
			prepareMsg, err := NewNodeMessage(s.PrivateKey, s.ID, toSend, Prepare, seq)
			if err != nil {
				return err
			}
			if err := Broadcast(ctx, producer, s.ID, string(Prepare), prepareMsg); err != nil {
				return err
			}
		case !isLeader:
			return fatal(ErrNotPrimary)
		case !isPrePrepareTag:
			return fatal(ErrWrongPhaseTag)
		default:
			return fatal(ErrSignatureInvalid)
		}
	}
	return nil
}

// CommitPhase tallies the collected Prepare messages, enforces the
// Byzantine fault threshold, and — if a single block holds the strictly
// highest count (a tie for the highest count fails the round) — commits it
// to the chain and broadcasts a signed Commit.
// It returns the chain's post-commit integrity check.
func CommitPhase(ctx context.Context, s *State, pkeyStore map[string]*cryptoutil.BLSPublicKey, prepareMsgs []NodeMessage, producer busclient.Producer) (bool, error) {
	a := float64(len(prepareMsgs))
	b := float64(len(s.Validators))
	faulty := b - a
	threshold := (b - 1) / 3
	if faulty > threshold {
		return false, fatal(ErrByzantineThreshold)
	}

	var blocks []chain.Block
	var counts []int

	for _, msg := range prepareMsgs {
		isValidator := s.isValidatorSender(msg.SenderID)
		isPrepareTag := msg.MsgType == Prepare

		pub, ok := pkeyStore[msg.SenderID]
		if !ok {
			return false, fatal(ErrUnknownSigner)
		}
		verified, err := msg.Verify(pub)
		if err != nil {
			return false, err
		}

		switch {
		case isValidator && isPrepareTag && verified:
			found := -1
			for i, b := range blocks {
				if b.Equal(msg.Block) {
					found = i
					break
				}
			}
			if found >= 0 {
				counts[found]++
				continue
			}
			valid, err := msg.Block.Validate(msg.Block.Transactions)
			if err != nil {
				return false, err
			}
			if valid {
				blocks = append(blocks, msg.Block)
				counts = append(counts, 1)
			}
		case !isValidator:
			return false, fatal(ErrNotValidator)
		case !isPrepareTag:
			return false, fatal(ErrWrongPhaseTag)
		default:
			return false, fatal(ErrSignatureInvalid)
		}
	}

	if len(counts) == 0 {
		return false, fatal(ErrNoMajority)
	}

	maxCount := counts[0]
	maxIdx := 0
	ties := 0
	for i, c := range counts {
		if c > maxCount {
			maxCount = c
			maxIdx = i
		}
	}
	for _, c := range counts {
		if c == maxCount {
			ties++
		}
	}
	if ties != 1 {
		return false, fatal(ErrTiedMajority)
	}

	winner := blocks[maxIdx]

	seq := s.nextSeqNum(2)
	commitMsg, err := NewNodeMessage(s.PrivateKey, s.ID, winner, Commit, seq)
	if err != nil {
		return false, err
	}
	if err := Broadcast(ctx, producer, s.ID, string(Commit), commitMsg); err != nil {
		return false, err
	}

	s.Chain.AddBlock(winner)
	return s.Chain.VerifyChain()
}
