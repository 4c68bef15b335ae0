package principal

import (
	"context"
	"strings"
)

// Role tags carried by the hosting session layer.
const (
	RolePlatformAdmin = "SUPER_ADMIN"
	RoleFinanceAdmin  = "PLATFORM_FINANCE_ADMIN"
	RoleRiskAdmin     = "PLATFORM_RISK_ADMIN"
)

// Principal identifies the caller of a settlement operation.
type Principal struct {
	UserID   string
	TenantID string
	Role     string
}

func (p Principal) IsPlatformAdmin() bool {
	return strings.EqualFold(p.Role, RolePlatformAdmin)
}

func (p Principal) IsFinanceAdmin() bool {
	return strings.EqualFold(p.Role, RoleFinanceAdmin)
}

func (p Principal) IsRiskAdmin() bool {
	return strings.EqualFold(p.Role, RoleRiskAdmin)
}

// CanMoveMoney reports whether the principal may perform monetary
// escrow/payout actions. Risk admins are read/annotate only.
func (p Principal) CanMoveMoney() bool {
	return p.IsPlatformAdmin() || p.IsFinanceAdmin()
}

// CanAdministerDisputes covers the non-monetary dispute surface
// (status changes, info requests).
func (p Principal) CanAdministerDisputes() bool {
	return p.IsPlatformAdmin() || p.IsFinanceAdmin() || p.IsRiskAdmin()
}

// ContextKey is the request context key for the active principal.
type ContextKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKey{}, p)
}

// FromContext returns the principal from context, if set.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ContextKey{}).(Principal)
	return p, ok
}
