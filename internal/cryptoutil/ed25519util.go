package cryptoutil

import "crypto/ed25519"

// VerifyEd25519 verifies sig over msg using the raw 32-byte Ed25519 public
// key pubKey. Transaction signatures are verified this way: the signed
// message is the transaction's serialization with its own signature field
// blanked out.
func VerifyEd25519(pubKey ed25519.PublicKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubKey, msg, sig)
}
