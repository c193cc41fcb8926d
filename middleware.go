package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ctxKey string

const userContextKey ctxKey = "user"

// currentUser returns the authenticated user placed in the request context by
// Authenticate, or nil if the request never passed through it.
func currentUser(r *http.Request) *User {
	u, _ := r.Context().Value(userContextKey).(*User)
	return u
}

// Authenticate resolves the bearer token to a user. The token only proves
// identity: the subject is re-read from the store on every request, so a
// deleted account is rejected immediately even if its token has not expired.
func (a *App) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeUnauthorized(w, "Missing bearer token")
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		claims, err := parseToken(a.secret, tokenStr)
		if err != nil {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}
		if claims.Scope != "" {
			// refresh tokens are only good for /auth/refresh
			writeUnauthorized(w, "Could not validate credentials")
			return
		}

		user, err := a.DB.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
			return
		}
		if user == nil {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRoles guards a handler with a role check. The decision is computed
// from the user's live stored roles, never from the token's role snapshot.
// It runs after Authenticate, so an invalid token is always reported as 401
// before any role comparison happens.
func (a *App) requireRoles(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		if user == nil {
			writeUnauthorized(w, "Could not validate credentials")
			return
		}
		if !user.HasAnyRole(roles...) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Operation not permitted")
			return
		}
		next(w, r)
	}
}

// CORS middleware handles CORS headers
func (a *App) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			allowed := false
			for _, o := range a.corsOrigins {
				if o == origin || o == "*" {
					allowed = true
					break
				}
			}
			if allowed || len(a.corsOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimiter implements per-client rate limiting
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*rate.Limiter{},
	}
}

func (rl *RateLimiter) getLimiter(key string, limitPerMinute int) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(limitPerMinute)/60, limitPerMinute)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// Credential endpoints get a tighter budget than the rest of the API.
const credentialRateLimitPerMinute = 30

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitCredentials throttles the sign-in/registration surface per client
// IP to slow down credential stuffing.
func (a *App) RateLimitCredentials(next http.Handler) http.Handler {
	if a.rateLimiter == nil {
		a.rateLimiter = NewRateLimiter()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := a.rateLimiter.getLimiter(clientIP(r), credentialRateLimitPerMinute)
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging middleware logs requests
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Printf("[%s] %s %s %d %v", r.Method, r.URL.Path, r.RemoteAddr, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
