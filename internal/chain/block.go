// Package chain defines the Block and BlockChain types and the integrity
// checks that bind consensus decisions together.
package chain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/merkletree"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// genesisBucketSeconds and blockBucketSeconds are the timestamp rounding
// grids: blocks snap to a 5-second grid, genesis to a 60-second
// grid (a coarser grid for the one block every node must agree on at boot
// without any consensus round having run yet).
const (
	blockBucketSeconds   = 5
	genesisBucketSeconds = 60
)

// Block is the monotonic, content-hashed, value-typed unit of the chain.
type Block struct {
	Index        uint64             `json:"index"`
	Hash         string             `json:"hash"`
	Timestamp    uint64             `json:"timestamp"`
	MerkleRoot   string             `json:"merkle_root"`
	PrevHash     string             `json:"prev_hash"`
	Transactions []txn.Transaction  `json:"transactions"`
}

// NewBlock builds a block from pool, bound to the chain tip (prevHash,
// index). The Merkle root and self-hash are computed and populated before
// return.
func NewBlock(pool []txn.Transaction, prevHash string, index uint64) (Block, error) {
	return newBlock(pool, prevHash, index, blockBucketSeconds)
}

// NewGenesis builds the one block every chain starts with: empty
// transactions, empty previous hash, index 0, on the coarser 60-second
// timestamp grid.
func NewGenesis() (Block, error) {
	return newBlock(nil, "", 0, genesisBucketSeconds)
}

func newBlock(pool []txn.Transaction, prevHash string, index uint64, bucket uint64) (Block, error) {
	var rootHex string
	if len(pool) == 0 {
		rootHex = ""
	} else {
		root, err := merkletree.GenerateRoot(pool)
		if err != nil {
			return Block{}, err
		}
		rootHex = hex.EncodeToString(root)
	}

	ts := uint64(time.Now().Unix())
	ts -= ts % bucket

	b := Block{
		Index:        index,
		Timestamp:    ts,
		MerkleRoot:   rootHex,
		PrevHash:     prevHash,
		Transactions: pool,
	}
	h, err := b.computeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = hex.EncodeToString(h)
	return b, nil
}

// computeHash is SHA-256 over the big-endian index and timestamp,
// concatenated with the raw (decoded) merkle root and previous-block hash
// bytes.
func (b Block) computeHash() ([]byte, error) {
	rootBytes, err := hex.DecodeString(b.MerkleRoot)
	if err != nil {
		return nil, err
	}
	prevBytes, err := hex.DecodeString(b.PrevHash)
	if err != nil {
		return nil, err
	}

	h := cryptoutil.NewHasher()
	var idxBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], b.Index)
	binary.BigEndian.PutUint64(tsBuf[:], b.Timestamp)
	h.Write(idxBuf[:])
	h.Write(tsBuf[:])
	h.Write(rootBytes)
	h.Write(prevBytes)
	return h.Sum(nil), nil
}

// Validate checks MerkleRoot(txs) == b.MerkleRoot. It deliberately does not
// recheck b.Hash, matching the original's intended contract: self-hash
// integrity is the chain's job (VerifyChain), this method is only the
// per-block transaction binding.
func (b Block) Validate(txs []txn.Transaction) (bool, error) {
	if len(txs) == 0 {
		return b.MerkleRoot == "", nil
	}
	root, err := merkletree.GenerateRoot(txs)
	if err != nil {
		return false, err
	}
	return hex.EncodeToString(root) == b.MerkleRoot, nil
}

// Equal is content equality: every field except Hash, including the
// transaction list, must match. Used when a validator checks a PrePrepare block against its
// own staged candidate.
func (b Block) Equal(o Block) bool {
	if b.Index != o.Index || b.Timestamp != o.Timestamp ||
		b.MerkleRoot != o.MerkleRoot || b.PrevHash != o.PrevHash ||
		len(b.Transactions) != len(o.Transactions) {
		return false
	}
	for i := range b.Transactions {
		if !b.Transactions[i].Equal(o.Transactions[i]) {
			return false
		}
	}
	return true
}

// Serialize/Deserialize round-trip a block through JSON, the wire format
// used inside NodeMessage payloads.
func (b Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize parses a JSON-encoded block.
func Deserialize(data []byte) (Block, error) {
	var b Block
	err := json.Unmarshal(data, &b)
	return b, err
}

// ErrEmptyChain is returned by operations that require at least a genesis
// block to be present.
var ErrEmptyChain = errors.New("chain: chain has no blocks")
