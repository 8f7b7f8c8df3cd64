package storage

// Keyed drops records missing a mint or signature, since neither store can
// key them. It returns the remaining records in order and how many were dropped.
func Keyed(records []TradeRecord) (kept []TradeRecord, skipped int) {
	kept = make([]TradeRecord, 0, len(records))
	for _, r := range records {
		if r.Mint == "" || r.Trade.Signature == "" {
			skipped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, skipped
}
