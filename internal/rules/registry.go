package rules

import (
	"sort"
	"sync"
	"time"

	"polyalert/internal/domain"
)

// TriggerState is per-rule trigger bookkeeping owned by the registry.
// Params: per-language last trigger times and total trigger count.
// Returns: mutable counters separated from the immutable rule definition.
type TriggerState struct {
	LastTriggered map[string]time.Time
	TriggerCount  int
}

// Registry holds the active rule set and is the sole writer of trigger
// bookkeeping. Rule definitions are replaced wholesale on config reload;
// bookkeeping survives reloads for rules that keep their id.
// Params: rule index and trigger state under one mutex.
// Returns: lookup/filter surface for the evaluator and scheduler.
type Registry struct {
	mu       sync.RWMutex
	rules    map[string]domain.AlertRule
	sorted   []domain.AlertRule
	triggers map[string]*TriggerState
}

// NewRegistry creates a registry from an initial rule set.
// Params: validated rule definitions.
// Returns: initialized registry.
func NewRegistry(ruleSet []domain.AlertRule) *Registry {
	registry := &Registry{
		triggers: make(map[string]*TriggerState),
	}
	registry.Replace(ruleSet)
	return registry
}

// Replace swaps the active rule set atomically.
// Params: new validated rule definitions.
// Returns: stale trigger state dropped for removed rule ids.
func (r *Registry) Replace(ruleSet []domain.AlertRule) {
	byID := make(map[string]domain.AlertRule, len(ruleSet))
	sorted := make([]domain.AlertRule, 0, len(ruleSet))
	for _, rule := range ruleSet {
		byID[rule.ID] = rule
		sorted = append(sorted, rule)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = byID
	r.sorted = sorted
	for id := range r.triggers {
		if _, ok := byID[id]; !ok {
			delete(r.triggers, id)
		}
	}
}

// Get returns one rule by id.
// Params: rule id.
// Returns: rule definition and existence flag.
func (r *Registry) Get(id string) (domain.AlertRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// List returns all rules in deterministic id order.
// Params: none.
// Returns: copy of the sorted rule slice.
func (r *Registry) List() []domain.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AlertRule(nil), r.sorted...)
}

// FindApplicable returns active rules covering one metric/language pair.
// Params: metric key and language code.
// Returns: matching rules in deterministic id order.
func (r *Registry) FindApplicable(metric, language string) []domain.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]domain.AlertRule, 0)
	for _, rule := range r.sorted {
		if !rule.Active || rule.Metric != metric {
			continue
		}
		if !rule.AppliesTo(language) {
			continue
		}
		matched = append(matched, rule)
	}
	return matched
}

// InCooldown reports whether the rule is still suppressed for one language.
// Params: rule, language code, and current time.
// Returns: true while now-lastTriggered is below the rule cooldown.
func (r *Registry) InCooldown(rule domain.AlertRule, language string, now time.Time) bool {
	if rule.Cooldown <= 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.triggers[rule.ID]
	if !ok {
		return false
	}
	last, ok := state.LastTriggered[language]
	if !ok {
		return false
	}
	return now.Sub(last) < rule.Cooldown
}

// MarkTriggered stamps the last trigger time and bumps the trigger count.
// Params: rule id, language code, and trigger time.
// Returns: bookkeeping mutated under the registry lock.
func (r *Registry) MarkTriggered(ruleID, language string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.triggers[ruleID]
	if !ok {
		state = &TriggerState{LastTriggered: make(map[string]time.Time)}
		r.triggers[ruleID] = state
	}
	state.LastTriggered[language] = now
	state.TriggerCount++
}

// TriggerCount returns the total trigger count for one rule.
// Params: rule id.
// Returns: count since registry creation (0 for unknown rules).
func (r *Registry) TriggerCount(ruleID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.triggers[ruleID]
	if !ok {
		return 0
	}
	return state.TriggerCount
}
