// Package passport implements component C6: event-sourced, order-independent
// passport scoring. No stored score is authoritative — every call derives a
// fresh result from the raw event set for a signer key, never the
// human-readable agent_id role label (see pkg/pact's PassportEvent doc and
// spec.md §9's identity re-architecture note — this is the single most
// load-bearing invariant this package upholds).
//
// Grounded on the teacher's trust/leaderboard.go for the derived,
// recomputed-not-stored scoring shape (GetBadgeLevel, deterministic
// SliceStable ranking), generalized from an organization-level trust score
// to a per-signer-key passport score with the specific recency-decay,
// wash-trading, and collusion formulas of spec.md §4.6.
package passport

import (
	"math"
	"sort"
	"strings"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/judgment"
	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

const halfLifeMs = 90 * 24 * 3600 * 1000

// Factor is one named contribution to the score breakdown.
type Factor struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// Factors separates positive and negative contributions, ordered by
// descending magnitude (largest contribution first), so breakdown readers
// can take "top factor" as index 0.
type Factors struct {
	Positive []Factor `json:"positive"`
	Negative []Factor `json:"negative"`
}

// Breakdown is the full explanatory detail behind a Score.
type Breakdown struct {
	SuccessComponent float64  `json:"success_component"`
	FailureComponent float64  `json:"failure_component"`
	DisputeComponent float64  `json:"dispute_component"`
	CollusionFactor  float64  `json:"collusion_factor"`
	Factors          Factors  `json:"factors"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Score is computePassportScore's result, on the 0-100 query-form scale.
type Score struct {
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Warning    string    `json:"warning,omitempty"`
	Breakdown  Breakdown `json:"breakdown"`
}

type weighted struct {
	event  pact.PassportEvent
	weight float64
}

// Compute implements spec.md §4.6 steps 1-11: the 0-100 query-form score
// for signerKey, as of nowMs, derived from events (which may include
// events for other signers — only signerKey's own events are folded; the
// rest inform nothing here since counterparty scoring is bootstrap-only,
// see the design note below).
//
// Counterparty scoring (step 4) uses bootstrap weight 0.5 unconditionally
// rather than recursively scoring the counterparty's own passport — an
// explicit resolution of spec.md §9's open question, matching what the
// spec describes as the existing implementation's behavior and avoiding
// the cycle-detection machinery a recursive variant would require.
func Compute(events []pact.PassportEvent, signerKey string, nowMs int64) Score {
	own := filterSigner(events, signerKey)

	successCount, failureCount := 0, 0
	for _, e := range own {
		switch e.Kind {
		case pact.EventSettlementSuccess:
			successCount++
		case pact.EventSettlementFailure:
			if e.Terminality == pact.Terminal {
				failureCount++
			}
		}
	}
	if len(own) < 3 && (successCount == 0 || failureCount == 0) {
		return Score{Score: 50, Confidence: 0, Warning: "Insufficient data"}
	}

	// Step 2: event separation. Non-terminal failures are excluded from
	// scoring entirely (spec.md §8 boundary behavior).
	var successes, failures, disputes []pact.PassportEvent
	for _, e := range own {
		switch e.Kind {
		case pact.EventSettlementSuccess:
			successes = append(successes, e)
		case pact.EventSettlementFailure:
			if e.Terminality == pact.Terminal {
				failures = append(failures, e)
			}
		case pact.EventDisputeResolved:
			disputes = append(disputes, e)
		}
	}

	settlementEvents := append(append([]pact.PassportEvent{}, successes...), failures...)
	cpCounts := counterpartyCounts(settlementEvents)
	totalSettlement := len(settlementEvents)
	dominantCP, dominantShare := dominantCounterparty(cpCounts, totalSettlement)

	medianSuccessValue := medianValue(successes)

	weightOf := func(e pact.PassportEvent) float64 {
		w := recencyWeight(e.TsMs, nowMs)
		w *= counterpartyWeight(nil) // bootstrap-only, see doc above
		if totalSettlement > 0 {
			share := float64(cpCounts[e.CounterpartyKey]) / float64(totalSettlement)
			w *= washTradingFactor(share)
		}
		return w
	}

	var sumWSucc, sumWFail float64
	var posFactors, negFactors []Factor

	for _, e := range successes {
		w := weightOf(e)
		if medianSuccessValue > 0 {
			ratio := e.Value / medianSuccessValue
			w *= clamp(ratio, 0.1, 10)
		}
		sumWSucc += w
		posFactors = append(posFactors, Factor{Factor: "Success transaction with " + e.CounterpartyKey, Weight: w})
	}
	for _, e := range failures {
		w := weightOf(e)
		sev := judgment.FailureSeverity(e.FaultDomain, e.FailureCode)
		w *= sev
		sumWFail += w
		negFactors = append(negFactors, Factor{Factor: "Failure " + e.FailureCode + " with " + e.CounterpartyKey, Weight: w})
	}

	var winW, lossW, dismissW float64
	for _, e := range disputes {
		w := recencyWeight(e.TsMs, nowMs)
		switch e.DisputeOutcome {
		case pact.DisputeWins:
			winW += w * 1
			posFactors = append(posFactors, Factor{Factor: "Dispute win with " + e.CounterpartyKey, Weight: w})
		case pact.DisputeLosses:
			lossW += w * 2
			negFactors = append(negFactors, Factor{Factor: "Dispute loss with " + e.CounterpartyKey, Weight: w * 2})
		case pact.DisputeDismissed, pact.DisputeSplit:
			dismissW += w * 0.5
		}
	}

	// Step 6: collusion. Concentration is the dominant counterparty's
	// share of settlement events; "excess concentration" is the amount
	// above the same 30% threshold the wash-trading step uses (an
	// explicit design choice — spec.md names the wash-trading threshold
	// but not a separate one for collusion, and reusing 30% keeps the two
	// penalties consistent rather than introducing an unstated constant).
	excess := math.Max(0, dominantShare-0.3)
	suspicion := 0.8 * excess
	uniqueCPs := len(cpCounts)
	if uniqueCPs > 0 && uniqueCPs <= 3 && totalSettlement > 5 {
		suspicion += 0.5 * dominantShare
	}
	collusionMultiplier := 1.0
	if suspicion > 0.3 {
		collusionMultiplier = clamp(1-(suspicion-0.3)*0.5, 0, 1)
	}

	var warnings []string
	if dominantShare > 0.3 {
		warnings = append(warnings, "High frequency counterparty concentration detected for "+dominantCP)
	}

	// Step 10: component scores.
	successComponent := 50.0
	failureComponent := 50.0
	if sumWSucc+sumWFail > 0 {
		successComponent = 100 * sumWSucc / (sumWSucc + sumWFail)
		failureComponent = 100 * (1 - sumWFail/(sumWSucc+sumWFail))
	}
	disputeComponent := 50.0
	if winW+lossW+dismissW > 0 {
		disputeComponent = 100 * winW / (winW + lossW + dismissW)
	}

	final := 0.5*successComponent + 0.3*failureComponent + 0.2*disputeComponent
	final *= collusionMultiplier
	final = clamp(final, 0, 100)

	// Step 11: confidence.
	eventsN := float64(len(own))
	base := 0.4*math.Log10(eventsN+1)/math.Log10(100) +
		0.3*math.Min(1, float64(uniqueCPs)/10)

	recentWithinHalfLife := 0
	for _, e := range own {
		if nowMs-e.TsMs <= halfLifeMs {
			recentWithinHalfLife++
		}
	}
	if eventsN > 0 {
		base += 0.3 * (float64(recentWithinHalfLife) / eventsN)
	}

	recentFailureRatio := 0.0
	recentDisputeLossRatio := 0.0
	if eventsN > 0 {
		recentFailures := 0
		recentDisputeLosses := 0
		for _, e := range own {
			if nowMs-e.TsMs > halfLifeMs {
				continue
			}
			if e.Kind == pact.EventSettlementFailure && e.Terminality == pact.Terminal {
				recentFailures++
			}
			if e.Kind == pact.EventDisputeResolved && e.DisputeOutcome == pact.DisputeLosses {
				recentDisputeLosses++
			}
		}
		recentFailureRatio = float64(recentFailures) / eventsN
		recentDisputeLossRatio = float64(recentDisputeLosses) / eventsN
	}
	failurePenalty := math.Min(0.3, recentFailureRatio)
	disputePenalty := math.Min(0.2, recentDisputeLossRatio)
	confidence := clamp(base*(1-failurePenalty)*(1-disputePenalty), 0, 1)

	sort.Slice(posFactors, func(i, j int) bool { return posFactors[i].Weight > posFactors[j].Weight })
	sort.Slice(negFactors, func(i, j int) bool { return negFactors[i].Weight > negFactors[j].Weight })

	return Score{
		Score:      final,
		Confidence: confidence,
		Breakdown: Breakdown{
			SuccessComponent: successComponent,
			FailureComponent: failureComponent,
			DisputeComponent: disputeComponent,
			CollusionFactor:  collusionMultiplier,
			Factors:          Factors{Positive: posFactors, Negative: negFactors},
			Warnings:         warnings,
		},
	}
}

func filterSigner(events []pact.PassportEvent, signerKey string) []pact.PassportEvent {
	var out []pact.PassportEvent
	for _, e := range events {
		if e.SignerKey == signerKey {
			out = append(out, e)
		}
	}
	return out
}

func recencyWeight(tsMs, nowMs int64) float64 {
	age := nowMs - tsMs
	if age < 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLifeMs))
}

// counterpartyWeight implements step 4. knownScore is nil when the
// counterparty has no known score, which is the only path this
// implementation exercises (see the bootstrap-only design note on Compute).
func counterpartyWeight(knownScore *float64) float64 {
	if knownScore == nil {
		return 0.5
	}
	return clamp(0.5+*knownScore/200, 0.5, 1.0)
}

func washTradingFactor(share float64) float64 {
	if share <= 0.3 {
		return 1.0
	}
	if share >= 1.0 {
		return 0.5
	}
	return 1.0 - (share-0.3)/(1.0-0.3)*0.5
}

func counterpartyCounts(events []pact.PassportEvent) map[string]int {
	counts := map[string]int{}
	for _, e := range events {
		counts[e.CounterpartyKey]++
	}
	return counts
}

func dominantCounterparty(counts map[string]int, total int) (string, float64) {
	if total == 0 {
		return "", 0
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
	return best, float64(bestCount) / float64(total)
}

func medianValue(events []pact.PassportEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	values := make([]float64, len(events))
	for i, e := range events {
		values[i] = e.Value
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RequireReason is the closed set of reason codes requirePassport may
// return, checked in the exact documented order.
type RequireReason string

const (
	ReasonInvalidMinScore      RequireReason = "INVALID_MIN_SCORE"
	ReasonInvalidMinConfidence RequireReason = "INVALID_MIN_CONFIDENCE"
	ReasonInsufficientHistory  RequireReason = "INSUFFICIENT_HISTORY"
	ReasonScoreTooLow          RequireReason = "SCORE_TOO_LOW"
	ReasonRecentPolicyViolation RequireReason = "RECENT_POLICY_VIOLATION"
	ReasonDisputeFlagged       RequireReason = "DISPUTE_FLAGGED"
	ReasonLowConfidence        RequireReason = "LOW_CONFIDENCE"
)

// RequireResult is requirePassport's outcome.
type RequireResult struct {
	Pass   bool          `json:"pass"`
	Reason RequireReason `json:"reason,omitempty"`
}

// Require implements spec.md §4.6 step 12's requirePassport helper.
// minConfidence of -1 means "not specified" (no confidence floor).
func Require(s Score, minScore float64, minConfidence float64) RequireResult {
	if minScore < 0 || minScore > 100 {
		return RequireResult{Pass: false, Reason: ReasonInvalidMinScore}
	}
	if minConfidence != -1 && (minConfidence < 0 || minConfidence > 1) {
		return RequireResult{Pass: false, Reason: ReasonInvalidMinConfidence}
	}
	if s.Confidence == 0 {
		return RequireResult{Pass: false, Reason: ReasonInsufficientHistory}
	}
	if s.Score < minScore {
		return RequireResult{Pass: false, Reason: ReasonScoreTooLow}
	}
	if s.Score < 60 && hasFactorContaining(s.Breakdown.Factors.Negative, "PACT-1") {
		return RequireResult{Pass: false, Reason: ReasonRecentPolicyViolation}
	}
	if s.Score < 50 && hasFactorContaining(s.Breakdown.Factors.Negative, "Dispute loss") {
		return RequireResult{Pass: false, Reason: ReasonDisputeFlagged}
	}
	if minConfidence != -1 && s.Confidence < minConfidence {
		return RequireResult{Pass: false, Reason: ReasonLowConfidence}
	}
	return RequireResult{Pass: true}
}

func hasFactorContaining(factors []Factor, substr string) bool {
	for _, f := range factors {
		if strings.Contains(f.Factor, substr) {
			return true
		}
	}
	return false
}
