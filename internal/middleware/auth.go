// Package middleware provides authentication, logging, metrics, tracing and
// rate limiting for the HTTP boundary.
package middleware

import (
	"context"
	"errors"
	"strings"

	"sprout/internal/auth"
	"sprout/internal/models"
	"sprout/internal/policy"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "userID"
	localRole   = "role"
	localClaims = "claims"
)

// TokenVerifier verifies a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// authenticate resolves the request's actor. It returns an Unauthenticated
// AppError when the token is missing, invalid, revoked or carries an
// unknown role.
func authenticate(c *fiber.Ctx, verifier TokenVerifier, revoked RevocationChecker) (*auth.Claims, error) {
	token, ok := bearerToken(c)
	if !ok {
		return nil, models.NewUnauthenticatedError("No token provided")
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, models.NewUnauthenticatedError("Invalid token")
	}

	if !claims.Role.Valid() {
		return nil, models.NewUnauthenticatedError("You have no access to this route")
	}

	if revoked != nil {
		isRevoked, err := revoked.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "token revocation check failed", "error", err)
		} else if isRevoked {
			return nil, models.NewUnauthenticatedError("Token has been revoked")
		}
	}

	return claims, nil
}

func storeActor(c *fiber.Ctx, claims *auth.Claims) {
	c.Locals(localUserID, claims.UserID)
	c.Locals(localRole, claims.Role)
	c.Locals(localClaims, claims)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(verifier TokenVerifier, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := authenticate(c, verifier, revoked)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		storeActor(c, claims)
		return c.Next()
	}
}

// TicketRedeemer consumes a single-use websocket ticket.
type TicketRedeemer interface {
	Redeem(ctx context.Context, ticket string) (*auth.Claims, error)
}

// WebsocketAuth authenticates websocket upgrades. A ?ticket= query value is
// redeemed exactly once and must be valid; without one the request falls
// back to the bearer token.
func WebsocketAuth(tickets TicketRedeemer, verifier TokenVerifier, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" {
			claims, err := authenticate(c, verifier, revoked)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized, err)
			}
			storeActor(c, claims)
			return c.Next()
		}

		claims, err := tickets.Redeem(c.UserContext(), ticket)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidTicket) {
				Logger.WarnContext(c.UserContext(), "websocket ticket redemption failed", "error", err)
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Invalid or expired websocket ticket"))
		}
		storeActor(c, claims)
		return c.Next()
	}
}

// OptionalAuth resolves the actor when a valid token is present and lets
// anonymous requests through unchanged.
func OptionalAuth(verifier TokenVerifier, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := bearerToken(c); !ok {
			return c.Next()
		}
		if claims, err := authenticate(c, verifier, revoked); err == nil {
			storeActor(c, claims)
		}
		return c.Next()
	}
}

// AdminRequired rejects non-admin actors. Must be placed after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("No token provided"))
		}
		if actor.Role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// ActorFrom returns the authenticated actor stored by AuthRequired or OptionalAuth.
func ActorFrom(c *fiber.Ctx) (policy.Actor, bool) {
	id, ok := c.Locals(localUserID).(uint)
	if !ok || id == 0 {
		return policy.Actor{}, false
	}
	role, _ := c.Locals(localRole).(models.Role)
	return policy.Actor{ID: id, Role: role}, true
}

// ClaimsFrom returns the verified token claims of the request.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(localClaims).(*auth.Claims)
	return claims, ok
}
