package passport

import (
	"sort"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/judgment"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// Outcome is the closed set of per-transcript outcomes the v1 delta form
// recognizes. Only these four are given a fixed delta by spec.md §4.6
// step 13; any other judgment (identity/negotiation/recursive faults, or
// non-terminal failures) contributes no delta — an explicit design choice
// since the spec enumerates exactly these four cases and nothing else.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomePolicyAbort Outcome = "policy_abort"
	OutcomeSLATimeout  Outcome = "sla_timeout"
	OutcomeDispute     Outcome = "dispute"
)

// Item is one unit of input to Recompute: a transcript's stable id plus
// enough derived context to compute its delta for one signer, without
// Recompute needing to re-run transcript verification or judgment
// resolution itself (callers already have both, from pkg/transcript and
// pkg/judgment).
type Item struct {
	StableID  string
	SignerKey string
	Outcome   Outcome

	// BlameMatchesSigner and Judgment apply only when Outcome is dispute:
	// BlameMatchesSigner reports whether the blame judgment attributes
	// fault to this signer; Judgment carries the passport impact to apply
	// either way.
	BlameMatchesSigner bool
	Judgment           *judgment.Judgment

	IntegrityTamperDetected bool
}

// ComputeDelta implements spec.md §4.6 step 13's fixed per-outcome deltas.
func ComputeDelta(item Item) pact.PassportDelta {
	if item.IntegrityTamperDetected {
		return pact.PassportDelta{ScoreDelta: -0.2}
	}

	switch item.Outcome {
	case OutcomeSuccess:
		return pact.PassportDelta{
			ScoreDelta: 0.01,
			Counters:   pact.PassportCounters{TotalSettlements: 1, SuccessfulSettlements: 1},
		}
	case OutcomePolicyAbort:
		return pact.PassportDelta{
			ScoreDelta: -0.01,
			Counters:   pact.PassportCounters{PolicyAborts: 1},
		}
	case OutcomeSLATimeout:
		return pact.PassportDelta{
			ScoreDelta: -0.02,
			Counters:   pact.PassportCounters{SLAViolations: 1},
		}
	case OutcomeDispute:
		if item.BlameMatchesSigner {
			impact := 0.0
			if item.Judgment != nil {
				impact = item.Judgment.PassportImpact
			}
			return pact.PassportDelta{
				ScoreDelta: impact,
				Counters:   pact.PassportCounters{DisputesLost: 1},
			}
		}
		// Exonerated: no change, unless the judgment's passport impact is
		// positive (a dispute resolved in the signer's favor), in which
		// case credit the win.
		if item.Judgment != nil && item.Judgment.PassportImpact > 0 {
			return pact.PassportDelta{
				ScoreDelta: 0.01,
				Counters:   pact.PassportCounters{DisputesWon: 1},
			}
		}
		return pact.PassportDelta{}
	default:
		return pact.PassportDelta{}
	}
}

// ApplyDelta folds delta onto state, clamping the resulting score to
// [-1, +1] per spec.md §4.6 step 13.
func ApplyDelta(state pact.PassportState, delta pact.PassportDelta) pact.PassportState {
	state.Score = clamp(state.Score+delta.ScoreDelta, -1, 1)
	state.Counters.TotalSettlements += delta.Counters.TotalSettlements
	state.Counters.SuccessfulSettlements += delta.Counters.SuccessfulSettlements
	state.Counters.DisputesLost += delta.Counters.DisputesLost
	state.Counters.DisputesWon += delta.Counters.DisputesWon
	state.Counters.SLAViolations += delta.Counters.SLAViolations
	state.Counters.PolicyAborts += delta.Counters.PolicyAborts
	return state
}

// Recompute implements spec.md §4.6 step 14: an order-independent fold
// over items for targetSigner. If targetSigner is empty, the most
// frequent signer across items is chosen, tied broken lexicographically.
// Items are deduped by (StableID, SignerKey) before folding, and sorted
// by StableID so that any permutation of the input produces the same
// result.
func Recompute(items []Item, targetSigner string) pact.PassportState {
	if targetSigner == "" {
		targetSigner = mostFrequentSigner(items)
	}

	seen := map[string]bool{}
	var relevant []Item
	for _, it := range items {
		if it.SignerKey != targetSigner {
			continue
		}
		key := it.StableID + "|" + it.SignerKey
		if seen[key] {
			continue
		}
		seen[key] = true
		relevant = append(relevant, it)
	}

	sort.Slice(relevant, func(i, j int) bool { return relevant[i].StableID < relevant[j].StableID })

	state := pact.PassportState{
		Version:   pact.PassportStateVersion,
		SignerKey: targetSigner,
	}
	for _, it := range relevant {
		state = ApplyDelta(state, ComputeDelta(it))
	}
	return state
}

func mostFrequentSigner(items []Item) string {
	counts := map[string]int{}
	for _, it := range items {
		counts[it.SignerKey]++
	}
	var best string
	bestCount := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			bestCount = counts[k]
			best = k
		}
	}
	return best
}
