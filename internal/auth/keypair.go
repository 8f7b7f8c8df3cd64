// Package auth provisions the keypair used to authenticate to the pending
// transaction feed.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DefaultKeypairPath is where the keypair is stored when none is configured.
const DefaultKeypairPath = "./auth.json"

// ErrInvalidKeypair is returned for key material that is not a valid ed25519 keypair.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an ed25519 keypair in Solana's 64-byte layout (seed || public key).
type Keypair struct {
	private ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{private: priv}, nil
}

// FromBytes builds a keypair from 64 bytes, checking that the stored public
// key matches the seed and is a valid curve point.
func FromBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(b))
	}

	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	if !bytes.Equal(pub, b[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("%w: public key not on curve: %v", ErrInvalidKeypair, err)
	}

	return &Keypair{private: priv}, nil
}

// Bytes returns the 64-byte Solana representation.
func (k *Keypair) Bytes() []byte {
	out := make([]byte, len(k.private))
	copy(out, k.private)
	return out
}

// PublicKey returns the base58 public key.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.private.Public().(ed25519.PublicKey))
}

// Sign signs msg with the private key.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Load reads a keypair file. Both the Solana CLI JSON array format and raw
// 64-byte files are accepted.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}

	if len(data) == ed25519.PrivateKeySize {
		if kp, err := FromBytes(data); err == nil {
			return kp, nil
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var ints []int
		if err := json.Unmarshal(trimmed, &ints); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidKeypair, err)
		}
		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKeypair, i, v)
			}
			raw[i] = byte(v)
		}
		return FromBytes(raw)
	}

	return FromBytes(data)
}

// Save writes the keypair as a JSON byte array readable only by the owner.
func Save(path string, k *Keypair) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create keypair directory: %w", err)
		}
	}

	raw := k.Bytes()
	ints := make([]int, len(raw))
	for i, b := range raw {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("marshal keypair: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keypair %s: %w", path, err)
	}
	// WriteFile keeps the mode of a file it overwrites.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod keypair %s: %w", path, err)
	}
	return nil
}

// LoadOrGenerate loads the keypair at path, generating and persisting a new
// one when the file does not exist. created reports which happened.
func LoadOrGenerate(path string) (kp *Keypair, created bool, err error) {
	kp, err = Load(path)
	if err == nil {
		return kp, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	kp, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := Save(path, kp); err != nil {
		return nil, false, err
	}
	return kp, true, nil
}
