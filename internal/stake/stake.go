// Package stake holds the types and weighted-selection algorithm the
// validator-selector service uses to turn a round's collected stake bids
// into a validator set and a primary.
package stake

import (
	"encoding/json"
	"math/rand"
)

// Stake is one node's bid for the round: its identity and the stake amount
// it is willing to back itself with.
type Stake struct {
	NodeID string  `json:"node_id"`
	Stake  float64 `json:"stake"`
}

// Validator is a node admitted to the consensus set for a round. NodeID and
// PublicKey are the same hex string: the node's BLS public key doubles as
// its identity.
type Validator struct {
	NodeID    string `json:"node_id"`
	PublicKey string `json:"public_key"`
}

// FromStake derives a Validator from an accepted Stake bid.
func FromStake(s Stake) Validator {
	return Validator{NodeID: s.NodeID, PublicKey: s.NodeID}
}

// Serialize/Deserialize round-trip Stake and Validator through JSON, the
// wire format used on the Stakes, Validators, and Primary topics.
func (s Stake) Serialize() ([]byte, error) { return json.Marshal(s) }

// DeserializeStake parses a JSON-encoded Stake.
func DeserializeStake(data []byte) (Stake, error) {
	var s Stake
	err := json.Unmarshal(data, &s)
	return s, err
}

// Serialize encodes v as JSON.
func (v Validator) Serialize() ([]byte, error) { return json.Marshal(v) }

// DeserializeValidator parses a JSON-encoded Validator.
func DeserializeValidator(data []byte) (Validator, error) {
	var v Validator
	err := json.Unmarshal(data, &v)
	return v, err
}

// Select draws `count` distinct validators from stakes, weighted by stake
// amount, plus a primary chosen uniformly among the selected set.
//
// This reproduces the original selector's sampling method exactly: the
// weights are never renormalized, a draw that lands on an already-selected
// index is rejected and redrawn against the same weights. The result is the
// first `count` distinct indices of a with-replacement weighted draw, so a
// node's chance of ending up in the set is not proportional to its stake.
// This is a long-standing, intentionally preserved behavior, not a bug to
// fix here.
func Select(stakes []Stake, count int, rng *rand.Rand) ([]Validator, Validator, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	weights := make([]float64, len(stakes))
	var total float64
	for i, s := range stakes {
		weights[i] = s.Stake
		total += s.Stake
	}
	if total <= 0 || len(stakes) == 0 {
		return nil, Validator{}, ErrNoStake
	}

	selectedIdx := make(map[int]bool, count)
	validators := make([]Validator, 0, count)

	for len(validators) < count {
		idx := weightedSample(weights, total, rng)
		if selectedIdx[idx] {
			continue
		}
		selectedIdx[idx] = true
		validators = append(validators, FromStake(stakes[idx]))
	}

	primary := validators[rng.Intn(len(validators))]
	return validators, primary, nil
}

// weightedSample draws a single index from weights, whose sum is total;
// Select passes the same unchanged weights on every draw, rejections
// included (see Select's doc comment).
func weightedSample(weights []float64, total float64, rng *rand.Rand) int {
	r := rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if r < cum {
			return i
		}
	}
	return len(weights) - 1
}
