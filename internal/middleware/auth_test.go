package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sprout/internal/auth"
	"sprout/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRevocations map[string]bool

func (f fixedRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f[jti], nil
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.Envelope {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var env models.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestAuthRequired(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour)

	userToken, _, err := tokens.Issue(7, models.RoleUser)
	require.NoError(t, err)
	guestToken, _, err := tokens.Issue(8, models.Role("guest"))
	require.NoError(t, err)
	revokedToken, revokedClaims, err := tokens.Issue(9, models.RoleUser)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", AuthRequired(tokens, fixedRevocations{revokedClaims.ID: true}), func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": actor.ID, "role": actor.Role})
	})

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{"valid token", "Bearer " + userToken, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "No token provided"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "No token provided"},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"unknown role", "Bearer " + guestToken, http.StatusUnauthorized, "You have no access to this route"},
		{"revoked token", "Bearer " + revokedToken, http.StatusUnauthorized, "Token has been revoked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantMessage != "" {
				env := decodeEnvelope(t, resp)
				assert.False(t, env.Success)
				assert.Equal(t, tt.wantStatus, env.StatusCode)
				assert.Equal(t, tt.wantMessage, env.Message)
				assert.Equal(t, models.CodeUnauthenticated, env.Code)
			}
		})
	}
}

func TestOptionalAuthAndAdminRequired(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour)
	adminToken, _, err := tokens.Issue(1, models.RoleAdmin)
	require.NoError(t, err)
	userToken, _, err := tokens.Issue(2, models.RoleUser)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/feed", OptionalAuth(tokens, nil), func(c *fiber.Ctx) error {
		actor, _ := ActorFrom(c)
		return c.JSON(fiber.Map{"id": actor.ID})
	})
	app.Get("/admin", AuthRequired(tokens, nil), AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a bad token on an optional route is ignored")

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type ticketStub map[string]*auth.Claims

func (s ticketStub) Redeem(_ context.Context, ticket string) (*auth.Claims, error) {
	claims, ok := s[ticket]
	if !ok {
		return nil, auth.ErrInvalidTicket
	}
	delete(s, ticket)
	return claims, nil
}

func TestWebsocketAuth(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret-key-12345678901234567890", time.Hour)
	userToken, _, err := tokens.Issue(7, models.RoleUser)
	require.NoError(t, err)

	tickets := ticketStub{"t-1": {UserID: 11, Role: models.RoleUser}}
	app := fiber.New()
	app.Get("/ws", WebsocketAuth(tickets, tokens, nil), func(c *fiber.Ctx) error {
		actor, _ := ActorFrom(c)
		return c.JSON(fiber.Map{"id": actor.ID})
	})

	get := func(target, header string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := get("/ws?ticket=t-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, uint(11), body.ID)

	// A redeemed ticket is gone, and a bad ticket is not rescued by a valid header.
	env := decodeEnvelope(t, get("/ws?ticket=t-1", ""))
	assert.Equal(t, http.StatusUnauthorized, env.StatusCode)
	assert.Equal(t, "Invalid or expired websocket ticket", env.Message)
	env = decodeEnvelope(t, get("/ws?ticket=bogus", "Bearer "+userToken))
	assert.Equal(t, http.StatusUnauthorized, env.StatusCode)

	resp = get("/ws", "Bearer "+userToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	env = decodeEnvelope(t, get("/ws", ""))
	assert.Equal(t, "No token provided", env.Message)
}
