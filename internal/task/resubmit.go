package task

import (
	"math"
	"time"
)

// ResubmitPolicy decides when a task rejected by a saturated scheduler is
// offered again.
type ResubmitPolicy struct {
	// BaseDelay is the wait before the first resubmission.
	BaseDelay time.Duration

	// MaxDelay caps the wait between resubmissions.
	MaxDelay time.Duration

	// MaxResubmits bounds the resubmissions of one task. Zero means no limit.
	MaxResubmits int
}

// Defaults applied by NewPipeline to a zero ResubmitPolicy.
const (
	DefaultResubmitBaseDelay = time.Second
	DefaultResubmitMaxDelay  = time.Minute
)

func (p ResubmitPolicy) withDefaults() ResubmitPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultResubmitBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultResubmitMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.MaxResubmits < 0 {
		p.MaxResubmits = 0
	}
	return p
}

// Backoff returns the wait before resubmission number attempt (1-based):
// BaseDelay doubled for each earlier attempt, capped at MaxDelay.
func (p ResubmitPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		d *= 2
		if d <= 0 {
			d = time.Duration(math.MaxInt64)
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Exhausted reports whether resubmission number attempt exceeds the cap.
func (p ResubmitPolicy) Exhausted(attempt int) bool {
	return p.MaxResubmits > 0 && attempt > p.MaxResubmits
}
