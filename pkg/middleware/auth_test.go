package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"fin-advisor/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier map[string]string

func (s stubVerifier) Verify(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", auth.ErrInvalidToken
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthMiddleware(stubVerifier{"good": "user-7"}, zap.NewNop()), func(c *fiber.Ctx) error {
		id, _ := UserID(c)
		return c.SendString(id)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", target: "/me", header: "Bearer good", wantStatus: 200, wantBody: "user-7"},
		{name: "raw header", target: "/me", header: "good", wantStatus: 200, wantBody: "user-7"},
		{name: "query token", target: "/me?token=good", wantStatus: 200, wantBody: "user-7"},
		{name: "missing", target: "/me", wantStatus: 401},
		{name: "invalid", target: "/me", header: "Bearer bad", wantStatus: 401},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}
