package auth

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypair_RoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	require.NoError(t, Save(path, kp))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ints []int
	require.NoError(t, json.Unmarshal(data, &ints))
	assert.Len(t, ints, 64)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
	assert.Equal(t, kp.Bytes(), loaded.Bytes())
}

func TestKeypair_PublicKeyIsBase58(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	raw, err := base58.Decode(kp.PublicKey())
	require.NoError(t, err)
	assert.Len(t, raw, ed25519.PublicKeySize)
	assert.Equal(t, kp.Bytes()[32:], raw)
}

func TestLoad_RawBytes(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "raw.key")
	require.NoError(t, os.WriteFile(path, kp.Bytes(), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
}

func TestLoad_RawBytesStartingWithBracket(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = '['
	for i := 1; i < len(seed); i++ {
		seed[i] = byte(i * 7)
	}
	kp, err := FromBytes(ed25519.NewKeyFromSeed(seed))
	require.NoError(t, err)
	require.Equal(t, byte('['), kp.Bytes()[0])

	path := filepath.Join(t.TempDir(), "raw.key")
	require.NoError(t, os.WriteFile(path, kp.Bytes(), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, kp.Bytes(), loaded.Bytes())
}

func TestFromBytes_Invalid(t *testing.T) {
	_, err := FromBytes(make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidKeypair)

	kp, err := Generate()
	require.NoError(t, err)
	b := kp.Bytes()
	b[40] ^= 0xff
	_, err = FromBytes(b)
	assert.ErrorIs(t, err, ErrInvalidKeypair)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.json")
	require.NoError(t, os.WriteFile(short, []byte("[1,2,3]"), 0o600))
	_, err := Load(short)
	assert.ErrorIs(t, err, ErrInvalidKeypair)

	outOfRange := filepath.Join(dir, "range.json")
	require.NoError(t, os.WriteFile(outOfRange, []byte("[256]"), 0o600))
	_, err = Load(outOfRange)
	assert.ErrorIs(t, err, ErrInvalidKeypair)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")

	first, created, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PublicKey(), second.PublicKey())
}

func TestLoadOrGenerate_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0o600))

	_, _, err := LoadOrGenerate(path)
	assert.ErrorIs(t, err, ErrInvalidKeypair)
}

func TestHeaders(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	now := time.Unix(1700000000, 0)
	h := Headers(kp, now)

	assert.Equal(t, kp.PublicKey(), h.Get(HeaderPubkey))
	assert.Equal(t, strconv.FormatInt(now.Unix(), 10), h.Get(HeaderTimestamp))

	sig, err := base58.Decode(h.Get(HeaderSignature))
	require.NoError(t, err)
	pub, err := base58.Decode(kp.PublicKey())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("1700000000"), sig))
}
