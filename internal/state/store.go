// Package state keeps alert lifecycle records in memory with optional
// JSON snapshots for restart continuity.
package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"polyalert/internal/domain"
)

var (
	// ErrNotFound signals a lookup for an unknown alert id.
	ErrNotFound = errors.New("alert not found")
	// ErrConflict signals an open attempt while an active alert exists
	// for the same rule and language.
	ErrConflict = errors.New("active alert already exists")
)

const (
	// DefaultHistoryCap bounds the resolved-alert history length.
	DefaultHistoryCap = 1000
	// DefaultHistoryAge bounds how long resolved alerts are retained.
	DefaultHistoryAge = 7 * 24 * time.Hour
)

// AlertStore holds active alerts and a bounded history of closed ones.
// At most one active alert exists per (rule, language) pair.
type AlertStore struct {
	mu         sync.RWMutex
	active     map[string]*domain.Alert
	byPair     map[string]string
	history    []*domain.Alert
	historyCap int
	historyAge time.Duration
	seq        uint64
}

// NewAlertStore creates an empty store.
// Params: history length cap and maximum history age; zero values select
// the defaults.
// Returns: ready store.
func NewAlertStore(historyCap int, historyAge time.Duration) *AlertStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if historyAge <= 0 {
		historyAge = DefaultHistoryAge
	}
	return &AlertStore{
		active:     make(map[string]*domain.Alert),
		byPair:     make(map[string]string),
		history:    make([]*domain.Alert, 0, 64),
		historyCap: historyCap,
		historyAge: historyAge,
	}
}

func pairKey(ruleID, language string) string {
	return ruleID + "|" + language
}

// Open registers a new active alert unless one already exists for the
// same rule and language.
// Params: alert to register; ID is assigned here when empty.
// Returns: the stored alert copy, or ErrConflict with the existing alert.
func (s *AlertStore) Open(alert domain.Alert) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(alert.RuleID, alert.Language)
	if id, ok := s.byPair[key]; ok {
		existing := s.active[id]
		return existing.Clone(), ErrConflict
	}

	if alert.ID == "" {
		s.seq++
		alert.ID = fmt.Sprintf("alert_%d_%d", alert.Created.UnixMilli(), s.seq)
	}
	alert.Status = domain.AlertStatusActive
	stored := alert.Clone()
	s.active[stored.ID] = &stored
	s.byPair[key] = stored.ID
	return stored.Clone(), nil
}

// Resolve closes an active alert and moves it to history.
// Params: alert id and resolution time.
// Returns: the closed alert, or ErrNotFound.
func (s *AlertStore) Resolve(id string, at time.Time) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	alert.Status = domain.AlertStatusResolved
	resolved := at
	alert.Resolved = &resolved

	delete(s.active, id)
	delete(s.byPair, pairKey(alert.RuleID, alert.Language))
	s.history = append(s.history, alert)
	s.pruneLocked(at)
	return alert.Clone(), nil
}

// Acknowledge marks an active alert acknowledged by an operator. The
// alert stays active for escalation purposes but records who took it.
// Params: alert id and operator identity.
// Returns: updated alert, or ErrNotFound.
func (s *AlertStore) Acknowledge(id, by string) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	alert.Status = domain.AlertStatusAcknowledged
	alert.AcknowledgedBy = by
	return alert.Clone(), nil
}

// SetEscalated bumps an alert to the given escalation level.
// Params: alert id and new level.
// Returns: updated alert, or ErrNotFound.
func (s *AlertStore) SetEscalated(id string, level int) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.active[id]
	if !ok {
		return domain.Alert{}, ErrNotFound
	}
	alert.EscalationLevel = level
	alert.Status = domain.AlertStatusEscalated
	return alert.Clone(), nil
}

// AppendNotifications attaches delivery records to an alert. Lookups fall
// through to history so late records from a slow channel still land.
// Params: alert id and records to append.
// Returns: ErrNotFound when the id is unknown in both sets.
func (s *AlertStore) AppendNotifications(id string, records []domain.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if alert, ok := s.active[id]; ok {
		alert.Notifications = append(alert.Notifications, records...)
		return nil
	}
	for _, alert := range s.history {
		if alert.ID == id {
			alert.Notifications = append(alert.Notifications, records...)
			return nil
		}
	}
	return ErrNotFound
}

// Get fetches an alert by id from the active set or history.
// Params: alert id.
// Returns: a copy, or ErrNotFound.
func (s *AlertStore) Get(id string) (domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if alert, ok := s.active[id]; ok {
		return alert.Clone(), nil
	}
	for _, alert := range s.history {
		if alert.ID == id {
			return alert.Clone(), nil
		}
	}
	return domain.Alert{}, ErrNotFound
}

// ActiveFor returns the active alert for a rule and language, if any.
// Params: rule id and language.
// Returns: alert copy and presence flag.
func (s *AlertStore) ActiveFor(ruleID, language string) (domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey(ruleID, language)]
	if !ok {
		return domain.Alert{}, false
	}
	return s.active[id].Clone(), true
}

// ListActive returns all open alerts ordered by creation time.
// Returns: copies of every active alert.
func (s *AlertStore) ListActive() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Alert, 0, len(s.active))
	for _, alert := range s.active {
		out = append(out, alert.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// History returns closed alerts, newest first.
// Params: limit; non-positive means everything retained.
// Returns: copies in reverse chronological order.
func (s *AlertStore) History(limit int) []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i].Clone())
	}
	return out
}

// RecentClosed returns closed alerts resolved at or after the cutoff.
// Params: cutoff time.
// Returns: copies in chronological order.
func (s *AlertStore) RecentClosed(cutoff time.Time) []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Alert, 0)
	for _, alert := range s.history {
		if alert.Resolved != nil && !alert.Resolved.Before(cutoff) {
			out = append(out, alert.Clone())
		}
	}
	return out
}

// pruneLocked enforces the history caps. Caller holds the write lock.
func (s *AlertStore) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.historyAge)
	start := 0
	for start < len(s.history) {
		r := s.history[start].Resolved
		if r == nil || !r.Before(cutoff) {
			break
		}
		start++
	}
	if over := len(s.history) - start - s.historyCap; over > 0 {
		start += over
	}
	if start > 0 {
		s.history = append(s.history[:0:0], s.history[start:]...)
	}
}
