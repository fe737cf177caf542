package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"polyalert/internal/domain"
)

// snapshot is the on-disk shape of the store.
type snapshot struct {
	Active  []domain.Alert `json:"active"`
	History []domain.Alert `json:"history"`
}

// SaveSnapshot writes the current store contents to path atomically via
// a temp file rename.
// Params: destination path.
// Returns: error on marshal or filesystem failure.
func (s *AlertStore) SaveSnapshot(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Active:  make([]domain.Alert, 0, len(s.active)),
		History: make([]domain.Alert, 0, len(s.history)),
	}
	for _, alert := range s.active {
		snap.Active = append(snap.Active, alert.Clone())
	}
	for _, alert := range s.history {
		snap.History = append(snap.History, alert.Clone())
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode alert snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write alert snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit alert snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores store contents from a prior SaveSnapshot file.
// A missing file is not an error; the store simply starts empty.
// Params: snapshot path.
// Returns: error on read or decode failure.
func (s *AlertStore) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read alert snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode alert snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]*domain.Alert, len(snap.Active))
	s.byPair = make(map[string]string, len(snap.Active))
	for i := range snap.Active {
		alert := snap.Active[i].Clone()
		s.active[alert.ID] = &alert
		s.byPair[pairKey(alert.RuleID, alert.Language)] = alert.ID
	}
	s.history = make([]*domain.Alert, 0, len(snap.History))
	for i := range snap.History {
		alert := snap.History[i].Clone()
		s.history = append(s.history, &alert)
	}
	return nil
}
