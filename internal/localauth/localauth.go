// Package localauth guards the router's destructive endpoint
// (/router/playback_override) with a single
// shared admin token configured in secrets.env. There is no JWT issuance
// and no user accounts — the whole surface is localhost-only and has no
// external users to authenticate. What remains is a rate limiter and a
// bcrypt-hashed-secret comparison, used as a gate against an accidental or
// malicious local process hitting the one operation (forcing
// active-source ownership) that can desynchronize the router's state
// machine from user intent.
package localauth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken  = errors.New("localauth: missing admin token")
	ErrInvalidToken  = errors.New("localauth: invalid admin token")
	ErrRateLimited   = errors.New("localauth: too many attempts, try again later")
)

// Config holds the admin-token gate's tunables.
type Config struct {
	Token              string
	MaxAttempts        int
	WindowSeconds      int
}

type attemptWindow struct {
	timestamps []time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptWindow
	maxFails int
	window   time.Duration
}

func newRateLimiter(maxFails int, window time.Duration) *rateLimiter {
	if maxFails <= 0 {
		maxFails = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &rateLimiter{attempts: make(map[string]*attemptWindow), maxFails: maxFails, window: window}
}

func (rl *rateLimiter) allowed(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.attempts[key]
	if !ok {
		return true
	}
	rl.prune(w)
	return len(w.timestamps) < rl.maxFails
}

func (rl *rateLimiter) recordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.attempts[key]
	if !ok {
		w = &attemptWindow{}
		rl.attempts[key] = w
	}
	rl.prune(w)
	w.timestamps = append(w.timestamps, time.Now())
}

func (rl *rateLimiter) prune(w *attemptWindow) {
	cutoff := time.Now().Add(-rl.window)
	n := 0
	for _, t := range w.timestamps {
		if t.After(cutoff) {
			w.timestamps[n] = t
			n++
		}
	}
	w.timestamps = w.timestamps[:n]
}

// Gate is the local admin-token guard.
type Gate struct {
	hash    []byte
	limiter *rateLimiter
}

// New hashes the configured admin token with bcrypt so the plaintext is
// never compared directly. An empty token locks the gate shut (no admin
// token configured — every attempt is rejected, never silently allowed).
func New(cfg Config) *Gate {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.WindowSeconds == 0 {
		cfg.WindowSeconds = 900
	}

	var hash []byte
	if cfg.Token != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Token), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("localauth: failed to hash admin token", "error", err)
		} else {
			hash = h
		}
	} else {
		slog.Warn("localauth: no admin token configured; destructive endpoints are locked")
	}

	return &Gate{
		hash:    hash,
		limiter: newRateLimiter(cfg.MaxAttempts, time.Duration(cfg.WindowSeconds)*time.Second),
	}
}

// Check validates a bearer token presented by the caller, rate-limited by
// remoteAddr. A nil hash (no token configured) always rejects.
func (g *Gate) Check(token, remoteAddr string) error {
	if len(g.hash) == 0 {
		return ErrInvalidToken
	}
	if !g.limiter.allowed(remoteAddr) {
		return ErrRateLimited
	}
	if token == "" {
		return ErrMissingToken
	}
	if bcrypt.CompareHashAndPassword(g.hash, []byte(token)) != nil {
		g.limiter.recordFailure(remoteAddr)
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, or "" when the header is missing or not a Bearer header. The
// token itself is verified by Check via bcrypt.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
