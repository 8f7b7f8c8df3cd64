package solana

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"mempool-flow/internal/domain"
)

const (
	signatureLen = 64
	pubkeyLen    = 32
	// versionPrefix marks a versioned message; the low bits carry the version.
	versionPrefix = 0x80
)

// ErrMalformedTransaction is returned when wire bytes cannot be decoded.
var ErrMalformedTransaction = errors.New("malformed transaction")

// DecodeBase64Transaction decodes a base64 wire transaction.
func DecodeBase64Transaction(s string) (*domain.PendingTransaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedTransaction, err)
	}
	return DecodeTransaction(raw)
}

// DecodeTransaction parses signatures and static account keys from a legacy or
// v0 wire transaction. Instructions and address table lookups are not decoded.
func DecodeTransaction(raw []byte) (*domain.PendingTransaction, error) {
	r := &wireReader{buf: raw}

	numSigs, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("%w: signature count: %v", ErrMalformedTransaction, err)
	}
	// The fee payer always signs.
	if numSigs == 0 {
		return nil, fmt.Errorf("%w: no signatures", ErrMalformedTransaction)
	}
	sigs := make([]string, 0, numSigs)
	for i := 0; i < numSigs; i++ {
		b, err := r.take(signatureLen)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrMalformedTransaction, i, err)
		}
		sigs = append(sigs, base58.Encode(b))
	}

	prefix, err := r.peek()
	if err != nil {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedTransaction)
	}
	if prefix&versionPrefix != 0 {
		if v := prefix &^ versionPrefix; v != 0 {
			return nil, fmt.Errorf("%w: unsupported message version %d", ErrMalformedTransaction, v)
		}
		r.pos++
	}

	// header: required signatures, readonly signed, readonly unsigned
	if _, err := r.take(3); err != nil {
		return nil, fmt.Errorf("%w: message header: %v", ErrMalformedTransaction, err)
	}

	numKeys, err := r.compactU16()
	if err != nil {
		return nil, fmt.Errorf("%w: account count: %v", ErrMalformedTransaction, err)
	}
	keys := make([]string, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		b, err := r.take(pubkeyLen)
		if err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", ErrMalformedTransaction, i, err)
		}
		keys = append(keys, base58.Encode(b))
	}

	if _, err := r.take(32); err != nil {
		return nil, fmt.Errorf("%w: recent blockhash: %v", ErrMalformedTransaction, err)
	}

	return &domain.PendingTransaction{
		Signatures:  sigs,
		AccountKeys: keys,
		Raw:         raw,
	}, nil
}

// IsPubkey reports whether s is a base58 string decoding to 32 bytes.
func IsPubkey(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == pubkeyLen
}

type wireReader struct {
	buf []byte
	pos int
}

func (r *wireReader) peek() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of input at %d", r.pos)
	}
	return r.buf[r.pos], nil
}

func (r *wireReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("need %d bytes at %d, have %d", n, r.pos, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// compactU16 reads a shortvec length: 7 bits per byte, at most 3 bytes.
func (r *wireReader) compactU16() (int, error) {
	var v int
	for i := 0; i < 3; i++ {
		b, err := r.peek()
		if err != nil {
			return 0, err
		}
		r.pos++
		v |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if v > 0xffff {
				return 0, fmt.Errorf("compact-u16 overflow")
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("compact-u16 too long")
}
