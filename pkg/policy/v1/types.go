// Package v1 implements the legacy structured policy form: a staged guard
// over six phases (identity, intent, negotiation, lock, exchange,
// resolution), each running a fixed, ordered set of checks. The first
// failing check across the whole staged walk wins and short-circuits the
// remaining checks and phases — unlike the v4 rule tree, v1 is not an
// interpreted document, so its phases and checks are compiled in.
//
// Grounded on governance.JurisdictionResolver and governance.DenialLedger
// for the fail-closed, reason-coded decision shape, and on
// firewall.PolicyFirewall for the exchange phase's JSON Schema validation
// step (santhosh-tekuri/jsonschema/v5).
package v1

// Phase is one of the six staged guard phases, in evaluation order.
type Phase string

const (
	PhaseIdentity    Phase = "identity"
	PhaseIntent      Phase = "intent"
	PhaseNegotiation Phase = "negotiation"
	PhaseLock        Phase = "lock"
	PhaseExchange    Phase = "exchange"
	PhaseResolution  Phase = "resolution"
)

// Policy is the v1 structured policy document: per-phase thresholds and
// flags consumed by the fixed check set of each phase.
type Policy struct {
	PolicyVersion string `json:"policy_version"`
	PolicyID      string `json:"policy_id"`

	// identity
	ExcludeNewAgents     bool     `json:"exclude_new_agents"`
	AllowedRegions       []string `json:"allowed_regions"`
	MaxFailureRate       float64  `json:"max_failure_rate"`
	MaxTimeoutRate       float64  `json:"max_timeout_rate"`
	RequiredCredentials  []string `json:"required_credentials"`
	TrustedIssuers       []string `json:"trusted_issuers"`
	MinPassportScore     float64  `json:"min_passport_score"`
	MinPassportConfidence float64 `json:"min_passport_confidence"`

	// intent
	MinValidForMs     int64    `json:"min_valid_for_ms"`
	MaxValidForMs     int64    `json:"max_valid_for_ms"`
	MaxClockSkewMs    int64    `json:"max_clock_skew_ms"`
	IntentAllowlist   []string `json:"intent_allowlist"`
	SessionSpendCapUSD float64 `json:"session_spend_cap_usd"`
	MaxRateWindow     int      `json:"max_rate_window"`
	MaxConcurrency    int      `json:"max_concurrency"`
	MaxBudgetUSD      float64  `json:"max_budget_usd"`
	KillSwitchEngaged bool     `json:"kill_switch_engaged"`

	// negotiation
	MaxRounds            int     `json:"max_rounds"`
	NewAgentMaxRoundsBonus int    `json:"new_agent_max_rounds_bonus"`
	MaxDurationMs        int64   `json:"max_duration_ms"`
	MinFirmQuoteValidMs  int64   `json:"min_firm_quote_valid_ms"`
	MaxFirmQuoteValidMs  int64   `json:"max_firm_quote_valid_ms"`
	ReferenceBandLowPct  float64 `json:"reference_band_low_pct"`
	ReferenceBandHighPct float64 `json:"reference_band_high_pct"`
	MinCounterpartyScore float64 `json:"min_counterparty_score"`

	// lock
	AllowedSettlementModes []string `json:"allowed_settlement_modes"`
	RequirePreSettlementLock bool   `json:"require_pre_settlement_lock"`
	BondMultiple           float64 `json:"bond_multiple"`
	NewAgentBondMultiplier float64 `json:"new_agent_bond_multiplier"`
	MinBondMinor           int64   `json:"min_bond_minor"`

	// exchange
	RequireSchemaValidation bool    `json:"require_schema_validation"`
	ExchangeSchema          string  `json:"exchange_schema,omitempty"`
	StreamingSpendCapUSD    float64 `json:"streaming_spend_cap_usd"`
	MaxLatencyMs            int64   `json:"max_latency_ms"`
	MaxFreshnessMs          int64   `json:"max_freshness_ms"`

	// resolution
	ForbidTranscriptStorage bool `json:"forbid_transcript_storage"`
}

// Context carries every observed fact the staged checks need. Not every
// field is relevant to every policy — fields unused by a disabled check
// are simply ignored.
type Context struct {
	IsNewAgent        bool
	Region            string
	RecentFailureRate float64
	RecentTimeoutRate float64
	Credentials       []string
	Issuer            string
	PassportScore     float64
	PassportConfidence float64

	ExpiresAtMs    int64
	NowMs          int64
	SentAtMs       int64
	IntentType     string
	SessionSpendUSD float64
	HasBondProof   bool
	HasCredentialProof bool
	HasSponsorProof bool
	CurrentRate     int
	CurrentConcurrency int
	CurrentBudgetUSD float64

	RoundNumber       int
	NegotiationStartMs int64
	FirmQuoteValidMs  int64
	QuotedPrice       float64
	ReferenceBandMid  float64
	UrgentOverride    bool
	CounterpartyScore float64
	CounterpartyScoreKnown bool

	SettlementMode string
	PreSettlementLocked bool
	PriceMinor     int64
	SellerBondMinor int64

	ExchangePayload map[string]interface{}
	StreamingSpendUSD float64
	ObservedLatencyMs int64
	DataFreshnessMs   int64
}

// CheckOutcome is one evaluated check's result.
type CheckOutcome struct {
	Phase       Phase  `json:"phase"`
	Check       string `json:"check"`
	OK          bool   `json:"ok"`
	FailureCode string `json:"failure_code,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Result is the staged guard's verdict: allowed iff every check across
// every phase passed; otherwise FailedCheck names the first one that
// didn't, in documented evaluation order.
type Result struct {
	Allowed      bool         `json:"allowed"`
	FailedCheck  *CheckOutcome `json:"failed_check,omitempty"`
	EvidenceRefs []string     `json:"evidence_refs"`
}
