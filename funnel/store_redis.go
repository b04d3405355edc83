package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "funnel:session:"

// RedisStore keeps funnel sessions in Redis so they survive restarts.
// Serialization uses a tagged envelope; unknown stages decode to Start.
// The per-session exclusive section is an in-process mutex: ordering is
// guaranteed within one bot process, which is the deployment model here
// (Telegram allows a single consumer of updates per token anyway).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	locks map[int64]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL refreshes on every Put; 0 means keys never expire.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("funnel: redis ping: %w", err)
	}
	return &RedisStore{
		client: client,
		ttl:    opts.TTL,
		locks:  make(map[int64]*sessionLock),
	}, nil
}

// Get returns the session's state, or Start for an unknown session.
func (s *RedisStore) Get(ctx context.Context, sessionID int64) (State, error) {
	raw, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Start{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("funnel: redis get: %w", err)
	}
	return unmarshalState(raw)
}

// Put replaces the session's state wholesale and refreshes the TTL.
func (s *RedisStore) Put(ctx context.Context, sessionID int64, st State) error {
	raw, err := marshalState(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("funnel: redis set: %w", err)
	}
	return nil
}

// Acquire blocks until the caller owns the session's exclusive section.
// Lock entries are refcounted and removed once the last holder releases,
// so the map only tracks sessions with in-flight updates.
func (s *RedisStore) Acquire(sessionID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(sessionID int64) string {
	return redisKeyPrefix + strconv.FormatInt(sessionID, 10)
}

type storedState struct {
	Stage   string      `json:"stage"`
	Product *Selectable `json:"product,omitempty"`
	City    *Selectable `json:"city,omitempty"`
	Area    *Selectable `json:"area,omitempty"`
}

func marshalState(st State) ([]byte, error) {
	env := storedState{Stage: st.Stage()}
	switch v := st.(type) {
	case Start:
	case AwaitingProduct:
	case AwaitingCity:
		env.Product = &v.Product
	case AwaitingArea:
		env.Product = &v.Product
		env.City = &v.City
	case AwaitingConfirmation:
		env.Product = &v.Product
		env.City = &v.City
		env.Area = &v.Area
	default:
		return nil, fmt.Errorf("funnel: marshal: unknown state %T", st)
	}
	return json.Marshal(env)
}

func unmarshalState(raw []byte) (State, error) {
	var env storedState
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("funnel: unmarshal state: %w", err)
	}
	switch env.Stage {
	case stageProduct:
		return AwaitingProduct{}, nil
	case stageCity:
		if env.Product == nil {
			return Start{}, nil
		}
		return AwaitingCity{Product: *env.Product}, nil
	case stageArea:
		if env.Product == nil || env.City == nil {
			return Start{}, nil
		}
		return AwaitingArea{Product: *env.Product, City: *env.City}, nil
	case stageConfirmation:
		if env.Product == nil || env.City == nil || env.Area == nil {
			return Start{}, nil
		}
		return AwaitingConfirmation{Product: *env.Product, City: *env.City, Area: *env.Area}, nil
	default:
		// stageStart and anything unknown reset to the entry point
		return Start{}, nil
	}
}
