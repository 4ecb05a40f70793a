package resilience

import "time"

// Policy is the flat config-file form of a retry and breaker pair. Zero
// fields fall back to the defaults.
type Policy struct {
	Attempts    int
	BreakAfter  int
	CoolOffSecs int
}

// Retry returns the retry settings for p, logging attempts under service.
func (p Policy) Retry(service string) RetryConfig {
	cfg := DefaultRetryConfig()
	if p.Attempts > 0 {
		cfg.MaxAttempts = p.Attempts
	}
	cfg.OnRetry = RetryLogger(service, "request")
	return cfg
}

// Breaker returns a new breaker configured from p.
func (p Policy) Breaker() *Breaker {
	cfg := DefaultBreakerConfig()
	if p.BreakAfter > 0 {
		cfg.FailureThreshold = p.BreakAfter
	}
	if p.CoolOffSecs > 0 {
		cfg.ResetTimeout = time.Duration(p.CoolOffSecs) * time.Second
	}
	return NewBreaker(cfg)
}
