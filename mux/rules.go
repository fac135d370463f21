package mux

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// RoutingRule binds a predicate to a target agent. Higher Priority wins;
// ties are broken by insertion order.
type RoutingRule struct {
	ID            string
	Name          string
	Predicate     func(RoutingContext) bool
	TargetAgentID string
	Priority      int

	// seq is the insertion sequence, used as the stable tie-breaker.
	// Re-adding a rule with an existing id keeps the original sequence.
	seq int
}

// RuleEngine evaluates an ordered set of routing rules against a
// RoutingContext. Evaluation takes a snapshot of the rule list so that
// concurrent AddRule/RemoveRule calls never block an in-flight Evaluate.
type RuleEngine struct {
	mu      sync.RWMutex
	rules   []RoutingRule
	nextSeq int

	// StopOnFirstMatch makes Evaluate return at most the single
	// highest-priority matching rule.
	stopOnFirstMatch bool

	logger logrus.FieldLogger
}

// NewRuleEngine creates an empty rule engine. A nil logger falls back to
// the logrus standard logger.
func NewRuleEngine(stopOnFirstMatch bool, logger logrus.FieldLogger) *RuleEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RuleEngine{stopOnFirstMatch: stopOnFirstMatch, logger: logger}
}

// AddRule inserts a rule, replacing in place any rule with the same id.
// Replacement keeps the original insertion sequence so tie-breaking stays
// stable across reconfiguration.
func (e *RuleEngine) AddRule(rule RoutingRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == rule.ID {
			rule.seq = e.rules[i].seq
			e.rules[i] = rule
			return
		}
	}
	rule.seq = e.nextSeq
	e.nextSeq++
	e.rules = append(e.rules, rule)
}

// RemoveRule deletes the rule with the given id, reporting whether it
// existed.
func (e *RuleEngine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a snapshot of the rule list in insertion order.
func (e *RuleEngine) Rules() []RoutingRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RoutingRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the rules whose predicate matches ctx, sorted by
// priority descending then insertion order ascending. With
// StopOnFirstMatch the evaluation walks rules in that order and stops at
// the first match, so lower-priority predicates are not run at all.
//
// A predicate that panics is treated as a non-match and logged; it never
// aborts evaluation of the remaining rules.
func (e *RuleEngine) Evaluate(ctx RoutingContext) []RoutingRule {
	e.mu.RLock()
	ordered := make([]RoutingRule, len(e.rules))
	copy(ordered, e.rules)
	stopOnFirst := e.stopOnFirstMatch
	e.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].seq < ordered[j].seq
	})

	var matches []RoutingRule
	for _, rule := range ordered {
		if e.matches(rule, ctx) {
			matches = append(matches, rule)
			if stopOnFirst {
				break
			}
		}
	}
	return matches
}

// matches runs a single predicate, converting a panic into a non-match.
func (e *RuleEngine) matches(rule RoutingRule, ctx RoutingContext) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.logger.WithFields(logrus.Fields{
				"rule_id":   rule.ID,
				"rule_name": rule.Name,
				"panic":     r,
			}).Warn("routing rule predicate panicked; treating as non-match")
		}
	}()
	if rule.Predicate == nil {
		return false
	}
	return rule.Predicate(ctx)
}
