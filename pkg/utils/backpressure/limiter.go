// Package backpressure bounds how much work the service accepts at once.
package backpressure

import (
	"context"
	"sync/atomic"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

type Strategy int

const (
	// Block waits for a free slot until the caller's context is done
	Block Strategy = iota
	// Reject fails immediately when every slot is taken
	Reject
)

func (s Strategy) String() string {
	switch s {
	case Block:
		return "BLOCK"
	case Reject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// ParseStrategy maps "block" / "reject" to a Strategy; anything else is Reject
func ParseStrategy(s string) Strategy {
	if s == "block" {
		return Block
	}
	return Reject
}

var ErrRejected = &BackpressureError{"rejected due to backpressure"}

type BackpressureError struct {
	message string
}

func (e *BackpressureError) Error() string {
	return e.message
}

type Config struct {
	Name          string
	Strategy      Strategy
	MaxConcurrent int
}

// Limiter caps the number of concurrently running jobs
type Limiter struct {
	name     string
	strategy Strategy
	slots    chan struct{}

	rejectedCount  int64
	processedCount int64
	log            *logger.Logger
}

func NewLimiter(config Config) *Limiter {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}

	l := &Limiter{
		name:     config.Name,
		strategy: config.Strategy,
		slots:    make(chan struct{}, config.MaxConcurrent),
		log:      logger.GetLogger("backpressure." + config.Name),
	}
	l.log.Infof("Limiter '%s' allows %d concurrent jobs with strategy %v",
		config.Name, config.MaxConcurrent, config.Strategy)
	return l
}

// Acquire takes a slot. Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	default:
	}

	if l.strategy == Reject {
		atomic.AddInt64(&l.rejectedCount, 1)
		l.log.Debugf("Limiter '%s' rejected a job at capacity %d", l.name, cap(l.slots))
		return ErrRejected
	}

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire
func (l *Limiter) Release() {
	<-l.slots
	atomic.AddInt64(&l.processedCount, 1)
}

func (l *Limiter) Stats() Stats {
	return Stats{
		Name:           l.name,
		Strategy:       l.strategy.String(),
		InFlight:       len(l.slots),
		MaxConcurrent:  cap(l.slots),
		ProcessedCount: atomic.LoadInt64(&l.processedCount),
		RejectedCount:  atomic.LoadInt64(&l.rejectedCount),
	}
}

type Stats struct {
	Name           string `json:"name"`
	Strategy       string `json:"strategy"`
	InFlight       int    `json:"in_flight"`
	MaxConcurrent  int    `json:"max_concurrent"`
	ProcessedCount int64  `json:"processed_count"`
	RejectedCount  int64  `json:"rejected_count"`
}
