package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sprout/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTicketTTL bounds how long an issued websocket ticket stays redeemable.
const DefaultTicketTTL = 30 * time.Second

var (
	// ErrTicketsUnavailable is returned by Issue when no redis client is configured.
	ErrTicketsUnavailable = errors.New("websocket tickets unavailable")
	// ErrInvalidTicket is returned by Redeem for unknown, expired or reused tickets.
	ErrInvalidTicket = errors.New("invalid or expired websocket ticket")
)

// TicketStore hands out single-use websocket tickets so browsers can open
// the activity feed without putting a bearer token in the URL.
type TicketStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTicketStore creates a TicketStore backed by rdb. A non-positive ttl
// falls back to DefaultTicketTTL.
func NewTicketStore(rdb *redis.Client, ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketStore{rdb: rdb, ttl: ttl}
}

func ticketKey(ticket string) string {
	return "ws_ticket:" + ticket
}

// TTL reports how long issued tickets live.
func (s *TicketStore) TTL() time.Duration {
	return s.ttl
}

// Issue stores a fresh ticket for the actor described by claims.
func (s *TicketStore) Issue(ctx context.Context, claims *Claims) (string, error) {
	if s == nil || s.rdb == nil {
		return "", ErrTicketsUnavailable
	}
	ticket := uuid.NewString()
	value := fmt.Sprintf("%d:%s", claims.UserID, claims.Role)
	if err := s.rdb.Set(ctx, ticketKey(ticket), value, s.ttl).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Redeem consumes ticket and returns the actor it was issued to. GETDEL
// makes a second redemption of the same ticket fail.
func (s *TicketStore) Redeem(ctx context.Context, ticket string) (*Claims, error) {
	if s == nil || s.rdb == nil || ticket == "" {
		return nil, ErrInvalidTicket
	}
	value, err := s.rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidTicket
	}
	if err != nil {
		return nil, err
	}

	rawID, rawRole, ok := strings.Cut(value, ":")
	if !ok {
		return nil, ErrInvalidTicket
	}
	userID, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidTicket
	}
	role := models.Role(rawRole)
	if !role.Valid() {
		return nil, ErrInvalidTicket
	}
	return &Claims{UserID: uint(userID), Role: role}, nil
}
