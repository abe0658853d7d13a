package cryptoutil

import (
	"crypto/rand"
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// ErrInvalidSignature is returned when a BLS signature fails to parse or
// does not verify against the claimed signer.
var ErrInvalidSignature = errors.New("cryptoutil: invalid BLS signature")

// dstNode is the BLS signature domain-separation tag for node-to-node
// consensus messages (PrePrepare/Prepare/Commit/block signing). A fixed DST
// keeps this separate from any other BLS usage in the process.
var dstNode = []byte("STAKEPBFT_NODE_BLS_SIG_V1")

type (
	blsSecretKey  = blst.SecretKey
	blsPublicKey  = blst.P1Affine
	blsSignature  = blst.P2Affine
)

// BLSPrivateKey is a node's long-lived BLS12-381 signing key.
type BLSPrivateKey struct {
	sk *blsSecretKey
}

// BLSPublicKey is the verification counterpart of a BLSPrivateKey.
type BLSPublicKey struct {
	pk *blsPublicKey
}

// GenerateBLSKeyPair creates a fresh BLS12-381 key pair, the node-identity
// key the original source generates once per process with
// bls_signatures::PrivateKey::generate.
func GenerateBLSKeyPair() (*BLSPrivateKey, *BLSPublicKey, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, nil, err
	}
	sk := blst.KeyGen(ikm[:])
	pk := new(blsPublicKey).From(sk)
	return &BLSPrivateKey{sk: sk}, &BLSPublicKey{pk: pk}, nil
}

// Sign signs msg and returns the compressed, hex-ready signature bytes.
func (k *BLSPrivateKey) Sign(msg []byte) []byte {
	sig := new(blsSignature).Sign(k.sk, msg, dstNode)
	return sig.Compress()
}

// Bytes returns the compressed public-key encoding used as the node's
// hex-encoded identity.
func (k *BLSPublicKey) Bytes() []byte {
	return k.pk.Compress()
}

// ParseBLSPublicKey decodes a compressed BLS12-381 public key, as received
// on the Stakes/Validators topics keyed by node_id.
func ParseBLSPublicKey(b []byte) (*BLSPublicKey, error) {
	pk := new(blsPublicKey).Uncompress(b)
	if pk == nil || !pk.KeyValidate() {
		return nil, errors.New("cryptoutil: invalid BLS public key encoding")
	}
	return &BLSPublicKey{pk: pk}, nil
}

// VerifyBLS checks sig over msg against pk. It is the verification the
// prepare/commit phases perform against pkey_store[sender_id].
func VerifyBLS(pk *BLSPublicKey, sig, msg []byte) bool {
	s := new(blsSignature).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk.pk, false, msg, dstNode)
}
