// Package merkletree builds the Merkle commitment over a transaction pool
// and produces/validates inclusion proofs.
package merkletree

import (
	"encoding/hex"

	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// Proof is an inclusion proof: the sibling path from a leaf up to the root,
// plus the leaf's original index.
type Proof struct {
	Path      [][]byte
	LeafIndex int
}

// GenerateRoot computes the Merkle root over txs in pool order. An empty
// pool yields the empty byte string, matching the genesis block's merkle
// root. Odd levels duplicate the last leaf rather than leaving it
// unpaired.
func GenerateRoot(txs []txn.Transaction) ([]byte, error) {
	level, err := leaves(txs)
	if err != nil {
		return nil, err
	}
	if len(level) == 0 {
		return []byte{}, nil
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], nil
}

func leaves(txs []txn.Transaction) ([][]byte, error) {
	out := make([][]byte, 0, len(txs))
	for _, tx := range txs {
		b, err := hex.DecodeString(tx.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func nextLevel(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		right := left
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, cryptoutil.HashPair(left, right))
	}
	return next
}

// Tree is the fully materialized tree (every level kept), needed to produce
// proofs. GenerateRoot alone never needs this.
type Tree struct {
	Root   []byte
	Leaves [][]byte
	Depth  int

	levels [][][]byte // levels[0] is the leaves, levels[len-1] is {Root}
}

// New builds a Tree over txs, recording every intermediate level so that
// GenerateProof can be served without recomputation.
func New(txs []txn.Transaction) (*Tree, error) {
	lv, err := leaves(txs)
	if err != nil {
		return nil, err
	}
	if len(lv) == 0 {
		return &Tree{Root: []byte{}, Leaves: lv}, nil
	}

	levels := [][][]byte{lv}
	current := lv
	for len(current) > 1 {
		current = nextLevel(current)
		levels = append(levels, current)
	}

	return &Tree{Root: current[0], Leaves: lv, Depth: len(levels), levels: levels}, nil
}

// GenerateProof builds an inclusion proof for target: the sibling at every
// level on the way up from the leaf to the root, climbing one level per
// loop iteration rather than indexing into a single flattened node list (a
// flattened index does not stride evenly across levels of different
// sizes). An odd-sized level's unpaired last node is its own sibling,
// matching nextLevel's duplicate-last-leaf rule.
func (t *Tree) GenerateProof(target txn.Transaction) (Proof, error) {
	targetBytes, err := hex.DecodeString(target.ID)
	if err != nil {
		return Proof{}, err
	}

	idx := -1
	for i, l := range t.Leaves {
		if string(l) == string(targetBytes) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Proof{}, errLeafNotFound
	}
	leafIndex := idx

	var path [][]byte
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = idx
			}
		} else {
			siblingIdx = idx - 1
		}
		path = append(path, nodes[siblingIdx])
		idx /= 2
	}

	return Proof{Path: path, LeafIndex: leafIndex}, nil
}

// ValidateProof recomputes up proof.Path from leaf and checks the result
// against root. Mutating any byte of the leaf or root falsifies it.
func ValidateProof(proof Proof, leaf txn.Transaction, root []byte) bool {
	hash, err := hex.DecodeString(leaf.ID)
	if err != nil {
		return false
	}

	idx := proof.LeafIndex
	for _, sibling := range proof.Path {
		if idx%2 == 0 {
			hash = cryptoutil.HashPair(hash, sibling)
		} else {
			hash = cryptoutil.HashPair(sibling, hash)
		}
		idx /= 2
	}

	return string(hash) == string(root)
}

type merkleError string

func (e merkleError) Error() string { return string(e) }

const errLeafNotFound = merkleError("merkletree: target transaction not found among leaves")
