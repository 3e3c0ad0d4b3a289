package reqctx

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type fakeClaims struct {
	userID uuid.UUID
}

func (f fakeClaims) GetUserID() uuid.UUID { return f.userID }

func TestRequestMeta(t *testing.T) {
	ctx := context.Background()

	if ip, ua := ClientFromContext(ctx); ip != "" || ua != "" {
		t.Errorf("expected empty client info, got %q %q", ip, ua)
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		t.Errorf("expected empty request id, got %q", rid)
	}

	ctx = WithRequestMeta(ctx, &RequestMeta{
		RequestID: "req-1",
		ClientIP:  "10.0.0.7",
		UserAgent: "curl/8.0",
	})

	ip, ua := ClientFromContext(ctx)
	if ip != "10.0.0.7" || ua != "curl/8.0" {
		t.Errorf("ClientFromContext = %q %q", ip, ua)
	}
	if rid := RequestIDFromContext(ctx); rid != "req-1" {
		t.Errorf("RequestIDFromContext = %q", rid)
	}
}

func TestClaims(t *testing.T) {
	if got := ClaimsFromContext(context.Background()); got != nil {
		t.Errorf("ClaimsFromContext on empty context = %v, want nil", got)
	}

	id := uuid.New()
	got := ClaimsFromContext(WithClaims(context.Background(), fakeClaims{userID: id}))
	if got == nil || got.GetUserID() != id {
		t.Errorf("ClaimsFromContext = %v, want user %s", got, id)
	}

	if got := ClaimsFromContext(WithClaims(context.Background(), nil)); got != nil {
		t.Errorf("ClaimsFromContext after nil claims = %v, want nil", got)
	}
}
