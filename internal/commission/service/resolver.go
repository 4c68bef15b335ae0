package service

import (
	"sort"

	"github.com/pazarlabs/pazar/internal/commission/domain"
)

// ResolveRule selects the single applicable rule for a line. The choice is a
// total deterministic order over the matched set: company override before
// global, then match specificity, then priority descending, then newest
// createdAt, then highest id. Returns nil when nothing matches; callers must
// treat that as a validation failure, never a zero rate.
func ResolveRule(categoryID, brandID *string, rules []domain.Rule) *domain.Rule {
	matched := make([]domain.Rule, 0, len(rules))
	for _, rule := range rules {
		if ruleMatches(rule, categoryID, brandID) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return ruleLess(matched[j], matched[i])
	})
	return &matched[0]
}

func ruleMatches(rule domain.Rule, categoryID, brandID *string) bool {
	switch rule.MatchType {
	case domain.MatchCategoryAndBrand:
		return ptrEqual(rule.CategoryID, categoryID) && ptrEqual(rule.BrandID, brandID)
	case domain.MatchCategory:
		return ptrEqual(rule.CategoryID, categoryID)
	case domain.MatchBrand:
		return ptrEqual(rule.BrandID, brandID)
	case domain.MatchDefault:
		return true
	default:
		return false
	}
}

// ruleLess orders a strictly below b in preference.
func ruleLess(a, b domain.Rule) bool {
	if sa, sb := scopeRank(a.Scope), scopeRank(b.Scope); sa != sb {
		return sa < sb
	}
	if ma, mb := specificity(a.MatchType), specificity(b.MatchType); ma != mb {
		return ma < mb
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func scopeRank(scope domain.RuleScope) int {
	if scope == domain.RuleScopeCompanyOverride {
		return 1
	}
	return 0
}

func specificity(matchType domain.MatchType) int {
	switch matchType {
	case domain.MatchCategoryAndBrand:
		return 100
	case domain.MatchCategory, domain.MatchBrand:
		return 50
	default:
		return 0
	}
}

func ptrEqual(ruleValue, lineValue *string) bool {
	if ruleValue == nil || lineValue == nil {
		return false
	}
	return *ruleValue == *lineValue
}
