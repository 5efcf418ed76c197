// Package quality estimates the link quality towards a single peer.
//
// The only loss signal this package consumes is RequestedMissingMessages:
// when the remote side asks for missing sequenced messages, the link is
// losing data and senders should back off. Quality is a number in
// [Floor, 1]; 1 means no recent loss.
//
// Each peer owns its own Estimator. All methods are safe for concurrent use.
package quality

import (
	"sync"
	"time"
)

// Config holds the tuning knobs of an Estimator.
type Config struct {
	// PenaltyPerMessage is subtracted from quality for every reported missing
	// message.
	PenaltyPerMessage float64
	// RecoveryPerSecond is added back per second without new loss reports.
	RecoveryPerSecond float64
	// Floor is the lowest quality value an Estimator reports.
	Floor float64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		PenaltyPerMessage: 0.02,
		RecoveryPerSecond: 0.05,
		Floor:             0.05,
	}
}

// Snapshot is a point-in-time view of an Estimator.
type Snapshot struct {
	Quality         float64   `json:"quality"`
	MissingMessages uint64    `json:"missing_messages"`
	Requests        uint64    `json:"requests"`
	LastLossAt      time.Time `json:"last_loss_at"`
}

// Estimator tracks the quality of one peer's link.
type Estimator struct {
	cfg Config

	mu         sync.Mutex
	quality    float64 // value as of updatedAt
	updatedAt  time.Time
	missing    uint64
	requests   uint64
	lastLossAt time.Time
}

// New returns an Estimator at full quality.
func New(cfg Config) *Estimator {
	if cfg.Floor < 0 || cfg.Floor > 1 {
		cfg.Floor = DefaultConfig().Floor
	}
	return &Estimator{cfg: cfg, quality: 1}
}

// RequestedMissingMessages records that the peer reported count missing
// messages at time at.
func (e *Estimator) RequestedMissingMessages(count int, at time.Time) {
	if count < 0 {
		count = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.valueAt(at) - e.cfg.PenaltyPerMessage*float64(count)
	if q < e.cfg.Floor {
		q = e.cfg.Floor
	}
	e.quality = q
	if at.After(e.updatedAt) {
		e.updatedAt = at
	}
	e.requests++
	e.missing += uint64(count)
	if count > 0 {
		e.lastLossAt = at
	}
}

// Quality returns the estimated quality at time at.
func (e *Estimator) Quality(at time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.valueAt(at)
}

// Snapshot returns the estimator state at time at.
func (e *Estimator) Snapshot(at time.Time) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Quality:         e.valueAt(at),
		MissingMessages: e.missing,
		Requests:        e.requests,
		LastLossAt:      e.lastLossAt,
	}
}

// valueAt applies linear recovery since the last update. Must be called with
// mu held.
func (e *Estimator) valueAt(at time.Time) float64 {
	q := e.quality
	if !e.updatedAt.IsZero() && at.After(e.updatedAt) {
		q += at.Sub(e.updatedAt).Seconds() * e.cfg.RecoveryPerSecond
	}
	if q > 1 {
		q = 1
	}
	return q
}
