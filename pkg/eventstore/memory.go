package eventstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/seankkoons-gif/pact-protocol-sub003/pkg/pact"
)

// InMemoryStore is a mutex-guarded, map-backed Store, grounded on
// finance/budget.go's InMemoryTracker. It is used for tests and for
// single-process deployments with no durable store configured.
type InMemoryStore struct {
	mu sync.Mutex

	agents map[string]Agent
	// events is keyed by signerKey, then ordered by insertion; seenKeys
	// guards (TranscriptStableID, SignerKey) idempotency.
	events   map[string][]pact.PassportEvent
	seenKeys map[string]bool

	creditAccounts map[string]CreditAccount
	creditExposure map[string]pact.CreditExposure
	seenCredit     map[string]bool
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agents:         make(map[string]Agent),
		events:         make(map[string][]pact.PassportEvent),
		seenKeys:       make(map[string]bool),
		creditAccounts: make(map[string]CreditAccount),
		creditExposure: make(map[string]pact.CreditExposure),
		seenCredit:     make(map[string]bool),
	}
}

func eventKey(transcriptStableID, signerKey string) string {
	return transcriptStableID + "|" + signerKey
}

func (s *InMemoryStore) UpsertAgent(_ context.Context, signerKey, identityHash string, createdAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[signerKey]; exists {
		return nil
	}
	s.agents[signerKey] = Agent{SignerKey: signerKey, IdentityHash: identityHash, CreatedAtMs: createdAtMs}
	return nil
}

func (s *InMemoryStore) InsertEvent(_ context.Context, event pact.PassportEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey(event.TranscriptStableID, event.SignerKey)
	if s.seenKeys[key] {
		return false, nil
	}
	s.seenKeys[key] = true
	s.events[event.SignerKey] = append(s.events[event.SignerKey], event)
	return true, nil
}

func (s *InMemoryStore) HasTranscriptHash(_ context.Context, hash, signerKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if signerKey != "" {
		return s.seenKeys[eventKey(hash, signerKey)], nil
	}
	prefix := hash + "|"
	for k := range s.seenKeys {
		if strings.HasPrefix(k, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) GetEventsByAgent(_ context.Context, signerKey string) ([]pact.PassportEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append([]pact.PassportEvent(nil), s.events[signerKey]...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].TsMs < events[j].TsMs })
	return events, nil
}

func (s *InMemoryStore) GetRecentFailures(_ context.Context, signerKey string, nowMs, windowMs int64, codePrefix string) ([]pact.PassportEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []pact.PassportEvent
	for _, e := range s.events[signerKey] {
		if e.Kind != pact.EventSettlementFailure || e.Terminality != pact.Terminal {
			continue
		}
		if !withinWindow(e.TsMs, nowMs, windowMs) {
			continue
		}
		if !hasPrefix(e.FailureCode, codePrefix) {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].TsMs < result[j].TsMs })
	return result, nil
}

func (s *InMemoryStore) GetRecentDisputes(_ context.Context, signerKey string, nowMs, windowMs int64, outcome pact.DisputeOutcome) ([]pact.PassportEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []pact.PassportEvent
	for _, e := range s.events[signerKey] {
		if e.Kind != pact.EventDisputeResolved {
			continue
		}
		if !withinWindow(e.TsMs, nowMs, windowMs) {
			continue
		}
		if outcome != "" && e.DisputeOutcome != outcome {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].TsMs < result[j].TsMs })
	return result, nil
}

func (s *InMemoryStore) UpsertCreditAccount(_ context.Context, account CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditAccounts[account.SignerKey] = account
	return nil
}

func (s *InMemoryStore) GetCreditAccount(_ context.Context, signerKey string) (*CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.creditAccounts[signerKey]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *InMemoryStore) GetCreditExposure(_ context.Context, signerKey string) (pact.CreditExposure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditExposure[signerKey], nil
}

func (s *InMemoryStore) PutCreditExposure(_ context.Context, signerKey string, exposure pact.CreditExposure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditExposure[signerKey] = exposure
	return nil
}

func (s *InMemoryStore) InsertCreditEvent(_ context.Context, event CreditEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenCredit[event.TranscriptHash] {
		return false, nil
	}
	s.seenCredit[event.TranscriptHash] = true
	return true, nil
}
