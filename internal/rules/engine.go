// Package rules normalizes merchant names and categories with user-defined
// pattern rules. Rules are evaluated linearly in priority order and the
// first match wins.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dvloznov/budgenudge/internal/domain"
)

type compiledRule struct {
	rule    domain.Rule
	pattern string
	re      *regexp.Regexp
}

// Engine is an immutable, ordered set of compiled rules. Safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// Compile validates and orders rules. Inactive rules are dropped. Rules are
// sorted by priority (highest first) and then by ID so ordering is stable.
func Compile(rules []domain.Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if !r.MatchType.Valid() {
			return nil, fmt.Errorf("Compile: rule %d (%s): unknown match type %q", r.ID, r.Name, r.MatchType)
		}

		cr := compiledRule{
			rule:    r,
			pattern: strings.ToLower(strings.TrimSpace(r.Pattern)),
		}
		if r.MatchType == domain.MatchRegex && cr.pattern != "" {
			re, err := regexp.Compile("(?i)" + strings.TrimSpace(r.Pattern))
			if err != nil {
				return nil, fmt.Errorf("Compile: rule %d (%s): invalid regex: %w", r.ID, r.Name, err)
			}
			cr.re = re
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].rule.Priority != compiled[j].rule.Priority {
			return compiled[i].rule.Priority > compiled[j].rule.Priority
		}
		return compiled[i].rule.ID < compiled[j].rule.ID
	})

	return &Engine{rules: compiled}, nil
}

// Len returns the number of active rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Match returns the first rule matching merchant.
func (e *Engine) Match(merchant string) (*domain.Rule, bool) {
	subject := strings.ToLower(strings.TrimSpace(merchant))
	if subject == "" {
		return nil, false
	}

	for i := range e.rules {
		cr := &e.rules[i]
		if cr.matches(subject) {
			r := cr.rule
			return &r, true
		}
	}
	return nil, false
}

func (cr *compiledRule) matches(subject string) bool {
	if cr.pattern == "" {
		return false
	}
	switch cr.rule.MatchType {
	case domain.MatchStartsWith:
		return strings.HasPrefix(subject, cr.pattern)
	case domain.MatchContains:
		return strings.Contains(subject, cr.pattern)
	case domain.MatchExact:
		return subject == cr.pattern
	case domain.MatchRegex:
		return cr.re != nil && cr.re.MatchString(subject)
	}
	return false
}

// Apply rewrites tx according to the first matching rule. The raw Plaid
// merchant is matched so repeated application is idempotent. Returns true
// when a field changed.
func (e *Engine) Apply(tx *domain.Transaction) bool {
	subject := tx.MerchantName
	if strings.TrimSpace(subject) == "" {
		subject = tx.Name
	}

	r, ok := e.Match(subject)
	if !ok {
		return false
	}

	changed := false
	if r.SetMerchantName != "" && tx.AIMerchantName != r.SetMerchantName {
		tx.AIMerchantName = r.SetMerchantName
		changed = true
	}
	if r.SetCategory != "" && tx.AICategoryTag != r.SetCategory {
		tx.AICategoryTag = r.SetCategory
		changed = true
	}
	return changed
}

// ApplyAll runs Apply over txs and returns the transactions that changed.
func (e *Engine) ApplyAll(txs []*domain.Transaction) []*domain.Transaction {
	var changed []*domain.Transaction
	for _, tx := range txs {
		if e.Apply(tx) {
			changed = append(changed, tx)
		}
	}
	return changed
}
