// Package pact defines the shared wire types for the evidence verification
// and attribution core: messages, envelopes, transcript rounds, passport
// events/state, credit state, and policy documents. These are plain data
// structures; the behavior that operates on them lives in the sibling
// packages (canonical, envelope, transcript, judgment, policy, passport,
// credit, antigaming, eventstore).
package pact

// MessageKind is the closed set of message kinds a round can carry.
type MessageKind string

const (
	MessageIntent  MessageKind = "INTENT"
	MessageAsk     MessageKind = "ASK"
	MessageBid     MessageKind = "BID"
	MessageCounter MessageKind = "COUNTER"
	MessageAccept  MessageKind = "ACCEPT"
	MessageReject  MessageKind = "REJECT"
	MessageAbort   MessageKind = "ABORT"
	MessageCommit  MessageKind = "COMMIT"
	MessageReveal  MessageKind = "REVEAL"
	MessageReceipt MessageKind = "RECEIPT"
)

// Message is a structured negotiation step. Field presence varies by Kind;
// unused kind-specific fields are omitted from the canonical form via
// omitempty, since the codec's injectivity guarantee only needs to hold
// over the fields actually present.
type Message struct {
	Kind         MessageKind `json:"kind"`
	IntentID     string      `json:"intent_id"`
	SentAtMs     int64       `json:"sent_at_ms"`
	ExpiresAtMs  int64       `json:"expires_at_ms"`
	PriceMinor   int64       `json:"price_minor,omitempty"`
	Currency     string      `json:"currency,omitempty"`
	BondMinor    int64       `json:"bond_minor,omitempty"`
	Settlement   string      `json:"settlement,omitempty"`
	CommitHash   string      `json:"commit_hash,omitempty"`
	RevealValue  string      `json:"reveal_value,omitempty"`
	ReceiptID    string      `json:"receipt_id,omitempty"`
	Note         string      `json:"note,omitempty"`
}

// EnvelopeVersion is the normative literal every envelope must carry.
const EnvelopeVersion = "pact-envelope/1.0"

// Envelope wraps one Message with its two-step hash and Ed25519 signature.
// See pkg/envelope for Sign/Verify.
type Envelope struct {
	EnvelopeVersion    string  `json:"envelope_version"`
	Message            Message `json:"message"`
	MessageHashHex     string  `json:"message_hash_hex"`
	EnvelopeHashHex    string  `json:"envelope_hash_hex,omitempty"`
	SignerPublicKeyB58 string  `json:"signer_public_key_b58"`
	SignatureB58       string  `json:"signature_b58"`
	SignedAtMs         int64   `json:"signed_at_ms"`
}

// RoundType mirrors MessageKind at the transcript level; kept distinct so
// rounds can in principle carry administrative types a Message never would.
type RoundType = MessageKind

// Round is one signed, numbered step in a Transcript.
type Round struct {
	RoundNumber       int     `json:"round_number"`
	RoundType         RoundType `json:"round_type"`
	EnvelopeHash      string  `json:"envelope_hash"`
	MessageHash       string  `json:"message_hash"`
	Signature         string  `json:"signature"`
	TimestampMs       int64   `json:"timestamp_ms"`
	PreviousRoundHash string  `json:"previous_round_hash"`
	RoundHash         string  `json:"round_hash,omitempty"`
	AgentID           string  `json:"agent_id"`
	PublicKeyB58      string  `json:"public_key_b58"`
	ContentSummary    string  `json:"content_summary,omitempty"`
}

// Terminality distinguishes failures that end a negotiation from ones that
// are merely a retry hint.
type Terminality string

const (
	Terminal    Terminality = "terminal"
	NonTerminal Terminality = "non_terminal"
)

// FaultDomain is the closed set of places blame can be attributed to.
type FaultDomain string

const (
	FaultPolicy     FaultDomain = "policy"
	FaultIdentity   FaultDomain = "identity"
	FaultNegotiation FaultDomain = "negotiation"
	FaultSettlement FaultDomain = "settlement"
	FaultRecursive  FaultDomain = "recursive"
)

// FailureEvent records why and where a transcript terminated abnormally.
type FailureEvent struct {
	Code            string      `json:"code"` // PACT-NNN
	Stage           string      `json:"stage"`
	FaultDomain     FaultDomain `json:"fault_domain"`
	Terminality     Terminality `json:"terminality"`
	EvidenceRefs    []string    `json:"evidence_refs,omitempty"`
	TimestampMs     int64       `json:"timestamp"`
	TranscriptHash  string      `json:"transcript_hash"`
}

// TranscriptVersion is the normative literal every transcript must carry.
const TranscriptVersion = "pact-transcript/4.0"

// Transcript is a sealed, hash-chained record of one intent-to-outcome
// negotiation. Rounds are ordered by RoundNumber.
type Transcript struct {
	TranscriptVersion    string        `json:"transcript_version"`
	TranscriptID         string        `json:"transcript_id"`
	IntentID             string        `json:"intent_id"`
	IntentType           string        `json:"intent_type"`
	CreatedAtMs          int64         `json:"created_at_ms"`
	PolicyHash           string        `json:"policy_hash"`
	StrategyHash         string        `json:"strategy_hash"`
	IdentitySnapshotHash string        `json:"identity_snapshot_hash"`
	Rounds               []Round       `json:"rounds"`
	FailureEvent         *FailureEvent `json:"failure_event,omitempty"`
	FinalHash            string        `json:"final_hash,omitempty"`
}

// DisputeOutcome is the closed set of ways a dispute can resolve.
type DisputeOutcome string

const (
	DisputeWins      DisputeOutcome = "wins"
	DisputeLosses    DisputeOutcome = "losses"
	DisputeDismissed DisputeOutcome = "dismissed"
	DisputeSplit     DisputeOutcome = "split"
)

// PassportEventKind is the closed set of event kinds folded into a score.
type PassportEventKind string

const (
	EventSettlementSuccess PassportEventKind = "settlement_success"
	EventSettlementFailure PassportEventKind = "settlement_failure"
	EventDisputeResolved   PassportEventKind = "dispute_resolved"
)

// PassportEvent is derived per signer from an ingested transcript.
// Uniqueness key is (TranscriptStableID, SignerKey) — never the agent_id
// label; see the package doc of pkg/passport for why.
type PassportEvent struct {
	Kind               PassportEventKind `json:"kind"`
	TsMs               int64             `json:"ts"`
	TranscriptStableID string            `json:"transcript_hash"`
	SignerKey          string            `json:"signer_key"`
	CounterpartyKey    string            `json:"counterparty_key"`
	Value              float64           `json:"value"`
	FailureCode        string            `json:"failure_code,omitempty"`
	Stage              string            `json:"stage,omitempty"`
	FaultDomain        FaultDomain       `json:"fault_domain,omitempty"`
	Terminality        Terminality       `json:"terminality,omitempty"`
	DisputeOutcome     DisputeOutcome    `json:"dispute_outcome,omitempty"`
}

// PassportCounters are the raw tallies behind a derived score.
type PassportCounters struct {
	TotalSettlements     int `json:"total_settlements"`
	SuccessfulSettlements int `json:"successful_settlements"`
	DisputesLost         int `json:"disputes_lost"`
	DisputesWon          int `json:"disputes_won"`
	SLAViolations        int `json:"sla_violations"`
	PolicyAborts         int `json:"policy_aborts"`
}

// PassportStateVersion is the normative literal for the derived state shape.
const PassportStateVersion = "passport/1.0"

// PassportState is the [-1,+1] derived state used by the v1 delta API.
type PassportState struct {
	Version  string           `json:"version"`
	SignerKey string          `json:"signer_key"`
	Score    float64          `json:"score"`
	Counters PassportCounters `json:"counters"`
}

// PassportDelta has the same shape as PassportState but carries a partial
// increment meant to be folded onto an existing PassportState.
type PassportDelta struct {
	ScoreDelta float64          `json:"score_delta"`
	Counters   PassportCounters `json:"counters"`
}

// CreditTier is the closed set of credit bands.
type CreditTier string

const (
	TierA CreditTier = "A"
	TierB CreditTier = "B"
	TierC CreditTier = "C"
)

// CreditState is the derived credit posture for a signer.
type CreditState struct {
	Tier                  CreditTier `json:"tier"`
	MaxOutstandingUSD     float64    `json:"max_outstanding_usd"`
	MaxPerIntentUSD       float64    `json:"max_per_intent_usd"`
	MaxPerCounterpartyUSD float64    `json:"max_per_counterparty_usd"`
	CollateralRatio       float64    `json:"collateral_ratio"`
	RequiredEscrow        bool       `json:"required_escrow"`
	DisabledUntilMs       int64      `json:"disabled_until,omitempty"`
	Reason                string     `json:"reason,omitempty"`
}

// CreditExposure is the outstanding-amount bookkeeping behind credit checks.
type CreditExposure struct {
	OutstandingUSD    float64            `json:"outstanding_usd"`
	PerCounterpartyUSD map[string]float64 `json:"per_counterparty_map"`
}

// ConditionOperator is the closed set of leaf comparison operators a v4
// policy condition may use.
type ConditionOperator string

const (
	OpEqual        ConditionOperator = "=="
	OpNotEqual     ConditionOperator = "!="
	OpLessThan     ConditionOperator = "<"
	OpLessOrEqual  ConditionOperator = "<="
	OpGreaterThan  ConditionOperator = ">"
	OpGreaterOrEqual ConditionOperator = ">="
	OpIn           ConditionOperator = "IN"
	OpNotIn        ConditionOperator = "NOT_IN"
)

// PolicyVersion4 and PolicyVersion1 are the two normative version literals.
const (
	PolicyVersion4 = "pact-policy/4.0"
	PolicyVersion1 = "pact-policy/1.0"
)

// Rule is one named rule in a v4 policy document.
type Rule struct {
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
}

// Condition is either a leaf predicate or a logical composite. Exactly one
// of the fields is populated; And/Or/Not model AND/OR/NOT composition and
// the rest model a leaf. Encoded as a plain struct rather than an
// interface so it round-trips through encoding/json without a custom
// UnmarshalJSON — callers construct whichever shape they need.
type Condition struct {
	Field    string            `json:"field,omitempty"`
	Operator ConditionOperator `json:"operator,omitempty"`
	Value    interface{}       `json:"value,omitempty"`

	And []Condition `json:"AND,omitempty"`
	Or  []Condition `json:"OR,omitempty"`
	Not *Condition  `json:"NOT,omitempty"`

	// CEL holds an optional escape-hatch expression evaluated in place of
	// the structural leaf/composite form above. When non-empty it takes
	// precedence; see pkg/policy's CEL integration.
	CEL string `json:"cel,omitempty"`
}

// Policy is a v4 rule-tree policy document.
type Policy struct {
	PolicyVersion string `json:"policy_version"`
	PolicyID      string `json:"policy_id"`
	Rules         []Rule `json:"rules"`
}
