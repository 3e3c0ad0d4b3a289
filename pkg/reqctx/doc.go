// Package reqctx provides centralized request context management.
//
// HTTP middleware attaches request metadata and authentication claims to the
// context; the booking services read them back without depending on the
// transport. The audit chain, for instance, records the caller's IP address
// and user agent through ClientFromContext.
//
// Setting values (typically in middleware):
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{
//	    RequestID:   "abc-123",
//	    ClientIP:    "192.168.1.1",
//	    UserAgent:   "Mozilla/5.0",
//	    RequestedAt: time.Now(),
//	})
//
//	ctx = reqctx.WithClaims(ctx, claims)
//
// Getting values:
//
//	ip, ua := reqctx.ClientFromContext(ctx)
//	claims := reqctx.ClaimsFromContext(ctx) // nil when unauthenticated
//
// Contracts:
//
//   - RequestMeta is set by HTTP middleware for all requests
//   - Claims is set only for authenticated requests (token present and valid)
package reqctx
