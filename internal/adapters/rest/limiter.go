package rest

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
)

const maxLimiters = 10000

// limiterStore は利用者ごとのトークンバケットを保持します。
type limiterStore struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	if burst <= 0 {
		burst = 1
	}
	return &limiterStore{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[key]
	if !ok {
		// 上限を超えたらすべて破棄します。
		if len(s.limiters) >= maxLimiters {
			clear(s.limiters)
		}
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[key] = l
	}
	return l
}

func (s *limiterStore) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := auth.FromContext(c.Request.Context()); ok {
			key = id.UserID
		}
		if !s.get(key).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many check-in attempts"})
			return
		}
		c.Next()
	}
}
