package consensus

import "errors"

// These are the consensus-level, fail-stop violations that are fatal to the
// round: wrong sender role, wrong message tag, a signature
// that does not verify, a block that doesn't match the staged candidate,
// the Byzantine threshold being exceeded, and a tied block-count majority.
// None of them are recoverable mid-round — the caller's only options are to
// abort the round (matching the original's process-level panic) or
// surface the error and start a fresh round, never to partially commit.
var (
	ErrInvalidMessageType   = errors.New("consensus: invalid message type")
	ErrNotPrimary           = errors.New("consensus: sender is not the elected primary")
	ErrNotValidator         = errors.New("consensus: sender is not a member of the validator set")
	ErrWrongPhaseTag        = errors.New("consensus: message carries the wrong phase tag")
	ErrSignatureInvalid     = errors.New("consensus: signature verification failed")
	ErrBlockMismatch        = errors.New("consensus: preprepared block does not match the staged candidate")
	ErrByzantineThreshold   = errors.New("consensus: byzantine fault threshold exceeded")
	ErrNoMajority           = errors.New("consensus: no single block holds a strict majority")
	ErrTiedMajority         = errors.New("consensus: two or more blocks tied for the majority")
	ErrNotReady             = errors.New("consensus: readiness barrier was not satisfied within its retry budget")
	ErrUnknownSigner        = errors.New("consensus: sender is not present in the public key store")
	ErrEmptyPrepareMessages = errors.New("consensus: no prepare messages received")
)

// RoundError marks an error as fatal to the current round: the source
// aborts the process outright on these; this implementation instead
// surfaces RoundError up through internal/node/round.go so that cmd/node's
// main loop can log and exit, preserving the same "no partial block is ever committed"
// invariant without panicking out of ordinary call stacks.
type RoundError struct {
	Err error
}

func (e *RoundError) Error() string { return "fatal round error: " + e.Err.Error() }

func (e *RoundError) Unwrap() error { return e.Err }

func fatal(err error) *RoundError { return &RoundError{Err: err} }
