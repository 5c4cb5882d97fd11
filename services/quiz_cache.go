package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"orchidaquiz/models"

	"golang.org/x/sync/singleflight"
)

// QuizCache caches loaded quiz definitions with a TTL so session creation
// does not hammer the store. Concurrent misses for the same quiz collapse
// into a single load.
type QuizCache struct {
	store Store
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[uint]cachedQuiz
}

type cachedQuiz struct {
	quiz      *models.Quiz
	expiresAt time.Time
}

func NewQuizCache(store Store, ttl time.Duration) *QuizCache {
	return &QuizCache{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[uint]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.quiz, nil
	}
	c.mu.RUnlock()

	key := fmt.Sprintf("quiz-%d", quizID)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		c.mu.RUnlock()

		quiz, err := c.store.LoadQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Quiz), nil
}

// Invalidate drops a cached quiz after it is edited.
func (c *QuizCache) Invalidate(quizID uint) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
