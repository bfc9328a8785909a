package http

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

const (
	routeBadgesSubmit  = "badges:submit"
	routeBadgesReplace = "badges:replace"
)

// rateLimited charges each request to the client's bucket for route. Reads
// are never wrapped.
func (s *Server) rateLimited(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		key := domain.RateLimitKey(route, c.ClientIP())
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			s.log.Warn("rate limiter unavailable for %s: %v", route, err)
			if s.rateLimitFailClosed {
				writeErrorCode(c, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
				c.Abort()
				return
			}
			c.Next()
			return
		}
		setRateLimitHeaders(c.Writer.Header(), decision, time.Now())
		if !decision.Allowed {
			writeError(c, domain.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(h http.Header, d domain.RateLimitDecision, now time.Time) {
	h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if d.ResetAt.IsZero() {
		return
	}
	wait := int64(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if wait < 0 {
		wait = 0
	}
	h.Set("RateLimit-Reset", strconv.FormatInt(wait, 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.FormatInt(wait, 10))
	}
}
