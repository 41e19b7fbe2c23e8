package api

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default OTP request limits.
const (
	DefaultOTPPerEmail = 3
	DefaultOTPPerIP    = 10
	DefaultOTPWindow   = time.Hour
	otpLimiterSize     = 4096
)

type otpWindow struct {
	count int
	first time.Time
}

// OTPLimiter caps how many codes can be requested per e-mail address and
// per client IP within a fixed window. Records disappear when their window
// ends.
type OTPLimiter struct {
	mu       sync.Mutex
	perEmail int
	perIP    int
	window   time.Duration
	now      func() time.Time
	emails   *expirable.LRU[string, *otpWindow]
	ips      *expirable.LRU[string, *otpWindow]
}

// NewOTPLimiter returns a limiter allowing perEmail requests per address and
// perIP requests per client within window.
func NewOTPLimiter(perEmail, perIP int, window time.Duration) *OTPLimiter {
	return &OTPLimiter{
		perEmail: perEmail,
		perIP:    perIP,
		window:   window,
		now:      time.Now,
		emails:   expirable.NewLRU[string, *otpWindow](otpLimiterSize, nil, window),
		ips:      expirable.NewLRU[string, *otpWindow](otpLimiterSize, nil, window),
	}
}

// Allow records a request and reports whether it is within both limits.
// When refused, the returned duration is how long until the caller may try
// again.
func (l *OTPLimiter) Allow(email, ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ew := l.current(l.emails, email, now)
	iw := l.current(l.ips, ip, now)

	if ew.count >= l.perEmail {
		return false, ew.first.Add(l.window).Sub(now)
	}
	if iw.count >= l.perIP {
		return false, iw.first.Add(l.window).Sub(now)
	}
	ew.count++
	iw.count++
	return true, 0
}

func (l *OTPLimiter) current(c *expirable.LRU[string, *otpWindow], key string, now time.Time) *otpWindow {
	w, ok := c.Get(key)
	if !ok || now.Sub(w.first) >= l.window {
		w = &otpWindow{first: now}
		c.Add(key, w)
	}
	return w
}
