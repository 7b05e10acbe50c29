package redis

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// Read-through cache in front of the lesson and quiz catalog.
// Concurrent misses for the same key are coalesced into one backend read.
// A Redis failure degrades to a direct backend read, never to an error.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache decorates catalog repositories with Redis caching.
type CatalogCache struct {
	cache   *Cache
	lessons lesson.Repository
	quizzes quiz.Repository
	ttl     time.Duration
	group   singleflight.Group
	logger  *logger.Logger
}

// NewCatalogCache creates a CatalogCache. ttl <= 0 uses TTLCatalog.
func NewCatalogCache(cache *Cache, lessons lesson.Repository, quizzes quiz.Repository, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogCache{
		cache:   cache,
		lessons: lessons,
		quizzes: quizzes,
		ttl:     ttl,
		logger:  log.Named("catalog_cache"),
	}
}

// Lessons returns the cached lesson.Repository view.
func (c *CatalogCache) Lessons() lesson.Repository { return cachedLessons{c} }

// Quizzes returns the cached quiz.Repository view.
func (c *CatalogCache) Quizzes() quiz.Repository { return cachedQuizzes{c} }

func lessonKey(id string) string        { return "catalog:lesson:" + id }
func lessonListKey() string             { return "catalog:lessons" }
func quizKey(id string) string          { return "catalog:quiz:" + id }
func lessonQuizzesKey(id string) string { return "catalog:lesson_quizzes:" + id }

// readThrough returns the cached value for key or loads and stores it.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed", logger.String("key", key), logger.Err(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		loaded, err := load(ctx)
		if err != nil {
			return loaded, err
		}
		if err := c.cache.Set(ctx, key, loaded, c.ttl); err != nil {
			c.logger.Warn("catalog cache write failed", logger.String("key", key), logger.Err(err))
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *CatalogCache) invalidate(ctx context.Context, keys ...string) {
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("catalog cache invalidation failed", logger.Err(err))
	}
}

type cachedLessons struct{ c *CatalogCache }

func (r cachedLessons) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	return readThrough(ctx, r.c, lessonKey(id), func(ctx context.Context) (*lesson.Lesson, error) {
		return r.c.lessons.GetByID(ctx, id)
	})
}

func (r cachedLessons) List(ctx context.Context) ([]*lesson.Lesson, error) {
	return readThrough(ctx, r.c, lessonListKey(), r.c.lessons.List)
}

func (r cachedLessons) Save(ctx context.Context, l *lesson.Lesson) error {
	if err := r.c.lessons.Save(ctx, l); err != nil {
		return err
	}
	r.c.invalidate(ctx, lessonKey(l.ID), lessonListKey())
	return nil
}

type cachedQuizzes struct{ c *CatalogCache }

func (r cachedQuizzes) GetByID(ctx context.Context, id string) (*quiz.Quiz, error) {
	return readThrough(ctx, r.c, quizKey(id), func(ctx context.Context) (*quiz.Quiz, error) {
		return r.c.quizzes.GetByID(ctx, id)
	})
}

func (r cachedQuizzes) ListByLesson(ctx context.Context, lessonID string) ([]*quiz.Quiz, error) {
	return readThrough(ctx, r.c, lessonQuizzesKey(lessonID), func(ctx context.Context) ([]*quiz.Quiz, error) {
		return r.c.quizzes.ListByLesson(ctx, lessonID)
	})
}

func (r cachedQuizzes) Save(ctx context.Context, q *quiz.Quiz) error {
	if err := r.c.quizzes.Save(ctx, q); err != nil {
		return err
	}
	r.c.invalidate(ctx, quizKey(q.ID), lessonQuizzesKey(q.LessonID))
	return nil
}
