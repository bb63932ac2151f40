package storage

import "context"

type tenantCtxKey struct{}

// WithTenant scopes ctx to a tenant. Stores filter reads and stamp writes
// with it; an empty tenant means unscoped access.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenant)
}

// TenantFrom returns the tenant set by WithTenant, or "".
func TenantFrom(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantCtxKey{}).(string)
	return tenant
}

// Visible reports whether a record owned by owner may be read in ctx.
func Visible(ctx context.Context, owner string) bool {
	tenant := TenantFrom(ctx)
	return tenant == "" || tenant == owner
}
