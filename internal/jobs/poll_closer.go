package jobs

import (
	"context"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
)

// ExpiredPollCloser is the part of the poll service the closer drives
type ExpiredPollCloser interface {
	CloseExpired(ctx context.Context) (int, error)
}

// PollCloser periodically closes polls whose closes_at has passed
type PollCloser struct {
	polls ExpiredPollCloser
	loop  *loop
}

// NewPollCloser creates a closer that sweeps every interval
func NewPollCloser(polls ExpiredPollCloser, interval time.Duration) *PollCloser {
	if interval <= 0 {
		interval = time.Minute
	}
	pc := &PollCloser{polls: polls}
	pc.loop = newLoop("poll-closer", interval, pc.sweep)
	return pc
}

// Start begins sweeping in the background
func (pc *PollCloser) Start() {
	logger.Log.Info("Starting poll closer", zap.Duration("interval", pc.loop.interval))
	pc.loop.start()
}

// Stop ends the loop and waits for an in-flight sweep
func (pc *PollCloser) Stop() {
	pc.loop.stop()
	logger.Log.Info("Poll closer stopped")
}

func (pc *PollCloser) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ctx, span := telemetry.GetBusinessEvents().TracePollSweep(ctx)
	start := time.Now()
	closed, err := pc.polls.CloseExpired(ctx)
	telemetry.EndSpan(span, err)
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.Error("Poll close sweep failed", zap.Error(err))
		}
		return
	}
	if closed > 0 {
		logger.Log.Info("Closed expired polls",
			zap.Int("count", closed),
			logger.WithDuration(time.Since(start)))
	}
}
