// Package cache holds the Redis-backed stores shared by the webhook
// handlers: live call-session state keyed by transport call SID.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/conversation"
)

// SessionStore persists live call sessions between webhook turns. Get
// returns (nil, nil) for an unknown SID.
type SessionStore interface {
	Get(ctx context.Context, sid string) (*conversation.Session, error)
	Save(ctx context.Context, session *conversation.Session) error
	Delete(ctx context.Context, sid string) error
}

// RedisSessionStore implements SessionStore on Redis. Sessions carry a TTL
// so abandoned calls age out without explicit cleanup.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = "callsession"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		tracer: otel.Tracer("infrastructure.cache.session"),
	}
}

// Get loads the session for a call SID.
func (s *RedisSessionStore) Get(ctx context.Context, sid string) (*conversation.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get",
		trace.WithAttributes(attribute.String("call_sid", sid)),
	)
	defer span.End()

	data, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get call session: %w", err)
	}

	var session conversation.Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal call session: %w", err)
	}

	return &session, nil
}

// Save writes the session and refreshes its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, session *conversation.Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save",
		trace.WithAttributes(
			attribute.String("call_sid", session.SID),
			attribute.Int("timeout_count", session.TimeoutCount),
		),
	)
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal call session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(session.SID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store call session: %w", err)
	}

	return nil
}

// Delete removes a finished session. Deleting an unknown SID is not an
// error.
func (s *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete",
		trace.WithAttributes(attribute.String("call_sid", sid)),
	)
	defer span.End()

	if err := s.client.Del(ctx, s.key(sid)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete call session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) key(sid string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sid)
}

// MemorySessionStore is an in-memory SessionStore for tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*conversation.Session)}
}

func (s *MemorySessionStore) Get(_ context.Context, sid string) (*conversation.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *conversation.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.SID] = &copied
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}
