package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c fiber.Ctx) error {
		local, ok := RequestIDFromFiber(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		if reqctx.RequestIDFromContext(c.Context()) != local {
			return c.SendStatus(fiber.StatusConflict)
		}
		meta, ok := RequestMetaFromFiber(c)
		if !ok || meta.RequestID != local {
			return c.SendStatus(fiber.StatusConflict)
		}
		return c.SendString(local)
	})

	tests := []struct {
		name     string
		incoming string
	}{
		{"generated", ""},
		{"preserved", "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			got := resp.Header.Get(HeaderRequestID)
			if got == "" {
				t.Fatal("response has no request id")
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
		})
	}
}

func TestNewLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(NewLimiter(config.RateLimitConfig{Max: 2, ExpirationSeconds: 60}, nil))
	app.Get("/", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, w := range want {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != w {
			t.Errorf("request %d status = %d, want %d", i+1, resp.StatusCode, w)
		}
	}
}

func TestRequirePermissionWithoutActor(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequirePermission(nil, "session", "read"), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestActorContextWithoutClaims(t *testing.T) {
	app := fiber.New()
	app.Get("/", ActorContext(nil), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
