package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type attemptData struct {
	count        int
	firstAttempt time.Time
}

// rateLimiter counts failed logins per client IP. A captcha is demanded
// from captchaThreshold failures on, and the IP is blocked at maxAttempts.
type rateLimiter struct {
	sync.Mutex
	attempts map[string]*attemptData
	blocked  map[string]time.Time
	now      func() time.Time
}

const (
	maxAttempts      = 5
	captchaThreshold = 3
	blockDuration    = 15 * time.Minute
	windowDuration   = 15 * time.Minute
	maxTrackedIPs    = 10000
)

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		attempts: make(map[string]*attemptData),
		blocked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow returns false if the IP is currently blocked.
// It also cleans up expired blocks.
func (r *rateLimiter) Allow(ip string) bool {
	r.Lock()
	defer r.Unlock()

	if unblockTime, ok := r.blocked[ip]; ok {
		if r.now().Before(unblockTime) {
			return false
		}
		delete(r.blocked, ip)
		delete(r.attempts, ip)
	}
	return true
}

// Failures returns the failures recorded for ip in the current window.
func (r *rateLimiter) Failures(ip string) int {
	r.Lock()
	defer r.Unlock()

	data, ok := r.attempts[ip]
	if !ok || r.now().Sub(data.firstAttempt) > windowDuration {
		return 0
	}
	return data.count
}

func (r *rateLimiter) CaptchaRequired(ip string) bool {
	return r.Failures(ip) >= captchaThreshold
}

// RecordFailure increments the failure count and blocks if threshold reached.
func (r *rateLimiter) RecordFailure(ip string) {
	r.Lock()
	defer r.Unlock()

	now := r.now()
	if len(r.attempts) > maxTrackedIPs {
		r.evictExpired(now)
	}

	data, exists := r.attempts[ip]
	if !exists || now.Sub(data.firstAttempt) > windowDuration {
		r.attempts[ip] = &attemptData{count: 1, firstAttempt: now}
		return
	}
	data.count++
	if data.count >= maxAttempts {
		r.blocked[ip] = now.Add(blockDuration)
	}
}

// evictExpired drops finished windows and blocks. Caller holds the lock.
func (r *rateLimiter) evictExpired(now time.Time) {
	for ip, data := range r.attempts {
		if now.Sub(data.firstAttempt) > windowDuration {
			delete(r.attempts, ip)
		}
	}
	for ip, until := range r.blocked {
		if !now.Before(until) {
			delete(r.blocked, ip)
		}
	}
}

// Reset clears the counter for an IP (used on successful login).
func (r *rateLimiter) Reset(ip string) {
	r.Lock()
	defer r.Unlock()
	delete(r.attempts, ip)
	delete(r.blocked, ip)
}

func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
