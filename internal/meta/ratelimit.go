package meta

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
)

// RateLimiter paces Graph API calls from the quota-usage percentages the API
// reports in its response headers. Observed usage decays exponentially
// between calls so a burst long ago does not throttle the next sync; a
// throttle response imposes a hard cooldown that every caller honors.
//
// The limiter is shared across all syncs for a process. Waits happen outside
// the mutex so one slow caller never blocks header observation by another.
type RateLimiter struct {
	cfg config.MetaConfig
	now func() time.Time

	mu            sync.Mutex
	usagePct      float64
	observedAt    time.Time
	lastCallAt    time.Time
	cooldownUntil time.Time
}

// NewRateLimiter builds a limiter from the configured delay tiers.
func NewRateLimiter(cfg config.MetaConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, now: time.Now}
}

// appUsage is the shape of the X-App-Usage header.
type appUsage struct {
	CallCount    float64 `json:"call_count"`
	TotalTime    float64 `json:"total_time"`
	TotalCPUTime float64 `json:"total_cputime"`
}

// bucUsage is one entry in the X-Business-Use-Case-Usage header.
type bucUsage struct {
	CallCount                  float64 `json:"call_count"`
	TotalTime                  float64 `json:"total_time"`
	TotalCPUTime               float64 `json:"total_cputime"`
	EstimatedTimeToRegainAccess float64 `json:"estimated_time_to_regain_access"`
}

// ObserveHeaders records the quota usage reported by a response. The highest
// percentage across all usage dimensions becomes the current usage level.
// Returns the server's regain-access hint when present, zero otherwise.
func (l *RateLimiter) ObserveHeaders(h http.Header) time.Duration {
	var pct float64
	var regain time.Duration

	if raw := h.Get("X-App-Usage"); raw != "" {
		var u appUsage
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			pct = math.Max(pct, math.Max(u.CallCount, math.Max(u.TotalTime, u.TotalCPUTime)))
		}
	}
	if raw := h.Get("X-Business-Use-Case-Usage"); raw != "" {
		var byAccount map[string][]bucUsage
		if err := json.Unmarshal([]byte(raw), &byAccount); err == nil {
			for _, entries := range byAccount {
				for _, u := range entries {
					pct = math.Max(pct, math.Max(u.CallCount, math.Max(u.TotalTime, u.TotalCPUTime)))
					if u.EstimatedTimeToRegainAccess > 0 {
						d := time.Duration(u.EstimatedTimeToRegainAccess) * time.Minute
						if d > regain {
							regain = d
						}
					}
				}
			}
		}
	}

	if pct > 0 {
		l.mu.Lock()
		// Keep the decayed prior value if it is still higher than the fresh
		// reading, so observations from parallel responses never regress.
		if decayed := l.decayedUsage(l.now()); decayed > pct {
			pct = decayed
		}
		l.usagePct = pct
		l.observedAt = l.now()
		l.mu.Unlock()
	}
	return regain
}

// SetCooldown blocks all calls until d from now. Used after a throttle
// response; a longer existing cooldown is never shortened.
func (l *RateLimiter) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	until := l.now().Add(d)
	l.mu.Lock()
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
	l.mu.Unlock()
}

// Usage returns the current decayed usage percentage.
func (l *RateLimiter) Usage() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decayedUsage(l.now())
}

// decayedUsage applies exponential half-life decay to the last observation.
// Callers must hold mu.
func (l *RateLimiter) decayedUsage(now time.Time) float64 {
	if l.usagePct == 0 {
		return 0
	}
	halfLife := l.cfg.UsageHalfLife()
	if halfLife <= 0 {
		return l.usagePct
	}
	elapsed := now.Sub(l.observedAt)
	if elapsed <= 0 {
		return l.usagePct
	}
	return l.usagePct * math.Exp2(-elapsed.Seconds()/halfLife.Seconds())
}

// delayFor maps a usage percentage onto the configured delay tiers.
func (l *RateLimiter) delayFor(pct float64) time.Duration {
	ms := l.cfg.DelayBaseMS
	switch {
	case pct >= 80:
		ms = l.cfg.DelayHighMS
	case pct >= 60:
		ms = l.cfg.DelayElevatedMS
	case pct >= 40:
		ms = l.cfg.DelayModerateMS
	case pct >= 20:
		ms = l.cfg.DelayLightMS
	}
	return time.Duration(ms) * time.Millisecond
}

// Wait blocks until the next call is allowed to go out, honoring any active
// cooldown, the usage-tier spacing since the previous call, and context
// cancellation. The pause itself happens with the lock released.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for {
		now := l.now()

		l.mu.Lock()
		var wait time.Duration
		if l.cooldownUntil.After(now) {
			wait = l.cooldownUntil.Sub(now)
		} else {
			required := l.delayFor(l.decayedUsage(now))
			elapsed := now.Sub(l.lastCallAt)
			if l.lastCallAt.IsZero() || elapsed >= required {
				l.lastCallAt = now
				l.mu.Unlock()
				return nil
			}
			wait = required - elapsed
		}
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
