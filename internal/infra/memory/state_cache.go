package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// StateLoader builds a fresh pull snapshot of a game.
type StateLoader interface {
	State(ctx context.Context, code string) (domain.GameState, error)
}

// StateCache keeps pull snapshots for a short TTL so a crowd of polling clients costs one
// session lock per window. Concurrent misses for the same game share one load.
type StateCache struct {
	loader StateLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.Mutex
	rnd   *rand.Rand
	cache map[string]cachedState
}

type cachedState struct {
	state     domain.GameState
	expiresAt time.Time
}

func NewStateCache(loader StateLoader, ttl time.Duration) *StateCache {
	return &StateCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedState),
	}
}

func (c *StateCache) State(ctx context.Context, code string) (domain.GameState, error) {
	if state, ok := c.lookup(code); ok {
		return state, nil
	}

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		if state, ok := c.lookup(code); ok {
			return state, nil
		}
		state, err := c.loader.State(ctx, code)
		if err != nil {
			return domain.GameState{}, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.cache[code] = cachedState{state: state, expiresAt: c.clock().Add(c.ttlWithJitter())}
			c.mu.Unlock()
		}
		return state, nil
	})
	if err != nil {
		return domain.GameState{}, err
	}
	return result.(domain.GameState), nil
}

func (c *StateCache) lookup(code string) (domain.GameState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[code]
	if !ok {
		return domain.GameState{}, false
	}
	if !entry.expiresAt.After(c.clock()) {
		delete(c.cache, code)
		return domain.GameState{}, false
	}
	return entry.state, true
}

// Invalidate drops the cached snapshot of a game, e.g. when it is retired.
func (c *StateCache) Invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, code)
}

func (c *StateCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
