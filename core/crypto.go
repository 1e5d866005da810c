package core

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cryptographic primitives: plain Ed25519 signing and SHA-256 hashing
// over the standard library implementations directly, with no
// BLS/Dilithium aggregation layer — signing is pinned to a single scheme
// (see DESIGN.md).

// KeyPair is an Ed25519 identity: a validator's signing key.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// KeyPairFromHex rebuilds a KeyPair from a hex-encoded Ed25519 seed, the
// shape startup flags pass validator secret keys in.
func KeyPairFromHex(hexSeed string) (*KeyPair, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

// PublicHex renders the public key as lowercase hex, the form the ledger
// uses for Block.Validator and for AgentPredicate/attribute matching.
func (k *KeyPair) PublicHex() string { return hex.EncodeToString(k.Public) }

// Sign signs msg and returns the hex-encoded signature.
func (k *KeyPair) Sign(msg []byte) string {
	return hex.EncodeToString(ed25519.Sign(k.Private, msg))
}

// VerifySignature checks sigHex against msg under the hex-encoded public
// key pubHex.
func VerifySignature(pubHex, sigHex string, msg []byte) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// Sha256Hex returns the lowercase hex SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// signingBytes returns the canonical byte rendering of a block used both
// for its content hash and for the validator's signature: the
// concatenation of field renderings in fixed order id, timestamp,
// previous_hash, nonce, difficulty, validator, data_json, where data_json
// is BlockData's JSON encoding with alphabetically sorted keys
// (guaranteed by the field declaration order of BlockData and its
// payload structs, see types.go). Hash and Signature are never part of
// this rendering: the hash and the signature are both computed over these
// same bytes.
func signingBytes(b *Block) []byte {
	dataJSON, err := json.Marshal(b.Data)
	if err != nil {
		panic(err) // BlockData has no unmarshalable fields
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d", b.ID)
	fmt.Fprintf(&buf, "%d", b.Timestamp)
	buf.WriteString(b.PreviousHash)
	fmt.Fprintf(&buf, "%d", b.Nonce)
	fmt.Fprintf(&buf, "%d", b.Difficulty)
	buf.WriteString(b.Validator)
	buf.Write(dataJSON)
	return buf.Bytes()
}

// ComputeHash returns the block's content hash over everything except
// Hash and Signature.
func ComputeHash(b *Block) string {
	return Sha256Hex(signingBytes(b))
}

// hasLeadingZeroHex reports whether hash starts with n '0' hex characters,
// the mining/proof-of-work target a sealed block must meet.
func hasLeadingZeroHex(hash string, n int) bool {
	if n > len(hash) {
		return false
	}
	for i := 0; i < n; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}
