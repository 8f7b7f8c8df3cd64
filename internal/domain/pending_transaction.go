package domain

// PendingTransaction is a not-yet-confirmed transaction received from the feed.
// Discarded after processing.
type PendingTransaction struct {
	Signatures  []string // base58, first one is the display identifier
	AccountKeys []string // base58 static account keys, in message order
	Raw         []byte   // wire bytes, forwarded verbatim to simulation
}

// DisplayID returns the first signature, or "" when the transaction is unsigned.
func (t *PendingTransaction) DisplayID() string {
	if t == nil || len(t.Signatures) == 0 {
		return ""
	}
	return t.Signatures[0]
}

// AccountIndex returns the position of key in the account list, or -1.
func (t *PendingTransaction) AccountIndex(key string) int {
	if t == nil {
		return -1
	}
	for i, k := range t.AccountKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// NotificationBatch is one subscription notification.
// Transactions keep the order in which the feed delivered them.
type NotificationBatch struct {
	Slot         int64
	Transactions []PendingTransaction
}
