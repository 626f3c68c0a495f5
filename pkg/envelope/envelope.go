// Package envelope implements component C2: Ed25519 signing and
// verification of a pact.Message over a two-step hash, with base58-encoded
// keys and signatures. Grounded on the teacher's pkg/crypto Ed25519Signer,
// generalized from that signer's per-struct Canonicalize* helpers to one
// signing path over any canonical.Marshal-able message.
package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/canonical"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// KeyPair is a generated or loaded Ed25519 identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair produces a fresh random identity. The core never
// generates keys for a live negotiation (that's an external collaborator's
// job per spec.md §1) — this exists for tests and offline tooling.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("envelope: key generation failed: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// PublicKeyB58 returns the base58 encoding of the public key.
func (k KeyPair) PublicKeyB58() string {
	return base58.Encode(k.Public)
}

// hashEnvelopeInput is the intermediate shape hashed to produce the
// envelope hash; its field order has no bearing on the result since
// canonical.Marshal sorts keys, but the field set is normative.
type hashEnvelopeInput struct {
	EnvelopeVersion string      `json:"envelope_version"`
	Message         pact.Message `json:"message"`
	MessageHashHex  string      `json:"message_hash_hex"`
}

// Sign implements spec.md §4.2's sign(message, keypair, signed_at_ms):
//  1. message_hash_hex <- hash(message)
//  2. envelope_hash_hex <- hash({envelope_version, message, message_hash_hex})
//  3. signature <- Ed25519-sign(raw bytes of envelope_hash_hex)
//  4. return the envelope with base58-encoded key and signature.
func Sign(message pact.Message, kp KeyPair, signedAtMs int64) (pact.Envelope, error) {
	messageHashHex, err := canonical.Hash(message)
	if err != nil {
		return pact.Envelope{}, fmt.Errorf("envelope: hash message: %w", err)
	}

	envelopeHashHex, err := canonical.Hash(hashEnvelopeInput{
		EnvelopeVersion: pact.EnvelopeVersion,
		Message:         message,
		MessageHashHex:  messageHashHex,
	})
	if err != nil {
		return pact.Envelope{}, fmt.Errorf("envelope: hash envelope: %w", err)
	}

	signature := ed25519.Sign(kp.Private, []byte(envelopeHashHex))

	return pact.Envelope{
		EnvelopeVersion:    pact.EnvelopeVersion,
		Message:            message,
		MessageHashHex:     messageHashHex,
		EnvelopeHashHex:    envelopeHashHex,
		SignerPublicKeyB58: base58.Encode(kp.Public),
		SignatureB58:       base58.Encode(signature),
		SignedAtMs:         signedAtMs,
	}, nil
}

// Verify implements spec.md §4.2's verify(envelope): it never returns an
// error for normal (even malformed) input — every failure mode collapses
// to false, since the contract is "any mismatch -> false, never throws on
// normal data". The error result is always nil: even invalid base58 in the
// key or signature yields false.
func Verify(env pact.Envelope) (bool, error) {
	if env.EnvelopeVersion != pact.EnvelopeVersion {
		return false, nil
	}

	recomputedMessageHash, err := canonical.Hash(env.Message)
	if err != nil {
		return false, nil
	}
	if recomputedMessageHash != env.MessageHashHex {
		return false, nil
	}

	// Backward-compat tolerance: if envelope_hash_hex is absent, recompute
	// it and use it for signature verification, but never write it back.
	envelopeHashHex := env.EnvelopeHashHex
	recomputedEnvelopeHash, err := canonical.Hash(hashEnvelopeInput{
		EnvelopeVersion: pact.EnvelopeVersion,
		Message:         env.Message,
		MessageHashHex:  env.MessageHashHex,
	})
	if err != nil {
		return false, nil
	}
	if envelopeHashHex == "" {
		envelopeHashHex = recomputedEnvelopeHash
	} else if envelopeHashHex != recomputedEnvelopeHash {
		return false, nil
	}

	pubKeyBytes, err := base58.Decode(env.SignerPublicKeyB58)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false, nil
	}
	sigBytes, err := base58.Decode(env.SignatureB58)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false, nil
	}

	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(envelopeHashHex), sigBytes), nil
}

// VerifyRawHash checks an Ed25519 signature over the raw bytes of a hex
// digest directly, without reconstructing a full pact.Envelope. This is
// what pkg/transcript uses to check a round's embedded signature against
// its recorded envelope hash (spec.md §4.3 step 3 delegates "to C2 with
// the recorded public key" without requiring the round to carry the full
// message). Like Verify, it never errors on malformed data.
func VerifyRawHash(publicKeyB58, signatureB58, hashHex string) bool {
	pubKeyBytes, err := base58.Decode(publicKeyB58)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := base58.Decode(signatureB58)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(hashHex), sigBytes)
}
