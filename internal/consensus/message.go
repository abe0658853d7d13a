// Package consensus implements the three-phase PBFT round — PrePrepare,
// Prepare, Commit — that a set of validator nodes run over a single
// candidate block per round.
package consensus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stakepbft/stakepbft/internal/chain"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
)

// MessageType tags a NodeMessage with the phase it belongs to.
type MessageType string

const (
	PrePrepare MessageType = "PrePrepare"
	Prepare    MessageType = "Prepare"
	Commit     MessageType = "Commit"
	Reply      MessageType = "Reply"
)

// ParseMessageType normalizes any case of the four known phase tags.
func ParseMessageType(s string) (MessageType, error) {
	switch strings.ToUpper(s) {
	case "PREPREPARE":
		return PrePrepare, nil
	case "PREPARE":
		return Prepare, nil
	case "COMMIT":
		return Commit, nil
	case "REPLY":
		return Reply, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMessageType, s)
	}
}

// NodeMessage is the signed envelope every consensus-phase broadcast wraps
// its candidate block in: msg_type, block, signature, sender_id, and seq_num.
type NodeMessage struct {
	MsgType   MessageType `json:"msg_type"`
	Block     chain.Block `json:"block"`
	Signature string      `json:"signature"`
	SenderID  string      `json:"sender_id"`
	SeqNum    int         `json:"seq_num"`
}

// NewNodeMessage builds and signs a NodeMessage over block using priv. The
// signed payload is the block's canonical serialization, matching what
// Verify re-derives.
func NewNodeMessage(priv *cryptoutil.BLSPrivateKey, senderID string, block chain.Block, msgType MessageType, seqNum int) (NodeMessage, error) {
	payload, err := block.Serialize()
	if err != nil {
		return NodeMessage{}, err
	}
	sig := priv.Sign(payload)
	return NodeMessage{
		MsgType:   msgType,
		Block:     block,
		Signature: hex.EncodeToString(sig),
		SenderID:  senderID,
		SeqNum:    seqNum,
	}, nil
}

// Serialize encodes msg as JSON, the wire format carried on the
// Preprepare/Prepare/Commit topics.
func (m NodeMessage) Serialize() ([]byte, error) { return json.Marshal(m) }

// DeserializeMessage parses a JSON-encoded NodeMessage.
func DeserializeMessage(data []byte) (NodeMessage, error) {
	var m NodeMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// Verify checks m.Signature over m.Block's serialization against pub.
func (m NodeMessage) Verify(pub *cryptoutil.BLSPublicKey) (bool, error) {
	sig, err := hex.DecodeString(m.Signature)
	if err != nil {
		return false, err
	}
	payload, err := m.Block.Serialize()
	if err != nil {
		return false, err
	}
	return cryptoutil.VerifyBLS(pub, sig, payload), nil
}
