package auth

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
)

// Handshake header names.
const (
	HeaderPubkey    = "X-Auth-Pubkey"
	HeaderTimestamp = "X-Auth-Timestamp"
	HeaderSignature = "X-Auth-Signature"
)

// Headers returns handshake headers proving possession of k: the public key,
// the unix timestamp and a base58 signature over the timestamp string.
func Headers(k *Keypair, now time.Time) http.Header {
	ts := strconv.FormatInt(now.Unix(), 10)
	h := http.Header{}
	h.Set(HeaderPubkey, k.PublicKey())
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, base58.Encode(k.Sign([]byte(ts))))
	return h
}
