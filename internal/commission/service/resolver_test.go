package service

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func rule(id int64, scope domain.RuleScope, matchType domain.MatchType, priority int, category, brand *string, createdAt time.Time) domain.Rule {
	return domain.Rule{
		ID:         snowflake.ID(id),
		Scope:      scope,
		MatchType:  matchType,
		Priority:   priority,
		CategoryID: category,
		BrandID:    brand,
		CreatedAt:  createdAt,
	}
}

func TestResolveRule(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	electronics := strptr("cat-electronics")
	acme := strptr("brand-acme")

	tests := []struct {
		name     string
		category *string
		brand    *string
		rules    []domain.Rule
		wantID   int64
		wantNil  bool
	}{
		{
			name:     "company override beats global regardless of specificity",
			category: electronics,
			brand:    acme,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategoryAndBrand, 99, electronics, acme, base),
				rule(2, domain.RuleScopeCompanyOverride, domain.MatchDefault, 0, nil, nil, base),
			},
			wantID: 2,
		},
		{
			name:     "specificity beats priority within a scope",
			category: electronics,
			brand:    acme,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategory, 99, electronics, nil, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchCategoryAndBrand, 0, electronics, acme, base),
			},
			wantID: 2,
		},
		{
			name:     "higher priority wins at equal specificity",
			category: electronics,
			brand:    acme,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategory, 10, electronics, nil, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchBrand, 20, nil, acme, base),
			},
			wantID: 2,
		},
		{
			name:     "newer rule wins at equal priority",
			category: electronics,
			brand:    nil,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategory, 5, electronics, nil, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchCategory, 5, electronics, nil, base.Add(time.Hour)),
			},
			wantID: 2,
		},
		{
			name:     "higher id breaks exact ties",
			category: nil,
			brand:    nil,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchDefault, 0, nil, nil, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchDefault, 0, nil, nil, base),
			},
			wantID: 2,
		},
		{
			name:     "default rule is the fallback when nothing specific matches",
			category: strptr("cat-garden"),
			brand:    nil,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategory, 0, electronics, nil, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchDefault, 0, nil, nil, base),
			},
			wantID: 2,
		},
		{
			name:     "nil line category never matches a category rule",
			category: nil,
			brand:    acme,
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategory, 0, electronics, nil, base),
			},
			wantNil: true,
		},
		{
			name:     "no match returns nil rather than a zero rate",
			category: strptr("cat-garden"),
			brand:    strptr("brand-other"),
			rules: []domain.Rule{
				rule(1, domain.RuleScopeGlobal, domain.MatchCategoryAndBrand, 0, electronics, acme, base),
				rule(2, domain.RuleScopeGlobal, domain.MatchBrand, 0, nil, acme, base),
			},
			wantNil: true,
		},
		{
			name:    "empty rule set",
			rules:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRule(tt.category, tt.brand, tt.rules)
			if tt.wantNil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, snowflake.ID(tt.wantID), got.ID)
		})
	}
}

func TestResolveRuleIsOrderInvariant(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	electronics := strptr("cat-electronics")
	acme := strptr("brand-acme")

	// Rules 4 and 5 differ only by ID, so the final tiebreak is exercised in
	// every position too. Rule 5 must win for every input permutation.
	rules := []domain.Rule{
		rule(1, domain.RuleScopeGlobal, domain.MatchDefault, 0, nil, nil, base),
		rule(2, domain.RuleScopeGlobal, domain.MatchCategory, 10, electronics, nil, base),
		rule(3, domain.RuleScopeGlobal, domain.MatchCategoryAndBrand, 0, electronics, acme, base),
		rule(4, domain.RuleScopeCompanyOverride, domain.MatchBrand, 0, nil, acme, base),
		rule(5, domain.RuleScopeCompanyOverride, domain.MatchBrand, 0, nil, acme, base),
	}

	var check func(prefix, rest []domain.Rule)
	check = func(prefix, rest []domain.Rule) {
		if len(rest) == 0 {
			got := ResolveRule(electronics, acme, prefix)
			require.NotNil(t, got)
			require.Equal(t, snowflake.ID(5), got.ID)
			return
		}
		for i := range rest {
			next := append(append([]domain.Rule{}, prefix...), rest[i])
			remaining := append(append([]domain.Rule{}, rest[:i]...), rest[i+1:]...)
			check(next, remaining)
		}
	}
	check(nil, rules)
}
