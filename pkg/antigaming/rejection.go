package antigaming

import "sync"

const (
	// rejectionWindowMs is spec.md §4.8's rolling window for rejection
	// counting.
	rejectionWindowMs = int64(5 * 60_000)
	// badFaithThreshold is the minimum rejection count within the window
	// that, combined with the bid-gap evidence, trips bad-faith detection.
	badFaithThreshold = 3
	// bidGapThreshold is spec.md §4.8's "bid-gap > 50%" evidence cutoff.
	bidGapThreshold = 0.5
	// badFaithPenaltyMultiplier is the surcharge applied to later quote
	// evaluations once bad faith is detected for a pair. spec.md names the
	// mechanism ("raise penaltyMultiplier") without a number; 1.5 is
	// chosen as a concrete, documented 50% surcharge.
	badFaithPenaltyMultiplier = 1.5
)

type rejectionRecord struct {
	tsMs   int64
	bidGap float64
}

// RejectionTracker counts rejections by (agent, counterparty) in a
// rolling window, grounded on governance/denial.go's mutex-guarded,
// append-then-prune ledger shape.
type RejectionTracker struct {
	mu       sync.Mutex
	windowMs int64
	records  map[string][]rejectionRecord
}

// NewRejectionTracker constructs a tracker using spec.md §4.8's default
// 5-minute window.
func NewRejectionTracker() *RejectionTracker {
	return &RejectionTracker{
		windowMs: rejectionWindowMs,
		records:  make(map[string][]rejectionRecord),
	}
}

func rejectionKey(agent, counterparty string) string {
	return agent + "|" + counterparty
}

// RecordRejection records a rejection with its bid-gap evidence (the
// fractional gap between counter-offer and ask, e.g. 0.6 for a 60% gap)
// and returns the resulting bad-faith status for the pair.
func (t *RejectionTracker) RecordRejection(agent, counterparty string, nowMs int64, bidGap float64) BadFaithStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := rejectionKey(agent, counterparty)
	cutoff := nowMs - t.windowMs

	kept := t.records[key][:0]
	for _, r := range t.records[key] {
		if r.tsMs > cutoff {
			kept = append(kept, r)
		}
	}
	kept = append(kept, rejectionRecord{tsMs: nowMs, bidGap: bidGap})
	t.records[key] = kept

	return t.statusLocked(kept)
}

// Status reports the current bad-faith status for a pair without
// recording a new rejection.
func (t *RejectionTracker) Status(agent, counterparty string, nowMs int64) BadFaithStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := rejectionKey(agent, counterparty)
	cutoff := nowMs - t.windowMs

	var kept []rejectionRecord
	for _, r := range t.records[key] {
		if r.tsMs > cutoff {
			kept = append(kept, r)
		}
	}
	return t.statusLocked(kept)
}

func (t *RejectionTracker) statusLocked(records []rejectionRecord) BadFaithStatus {
	withGap := 0
	for _, r := range records {
		if r.bidGap > bidGapThreshold {
			withGap++
		}
	}
	if withGap >= badFaithThreshold {
		return BadFaithStatus{
			BadFaithDetected:  true,
			PenaltyMultiplier: badFaithPenaltyMultiplier,
			Flag:              "BAD_FAITH_BIDDING",
		}
	}
	return BadFaithStatus{PenaltyMultiplier: 1.0}
}
