package controller

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// idleSupervisor owns the activity clock and the idle animation. The poll
// loop reports activity through Hold and Release and the timer
// delivers ticks; both are handled on the supervisor goroutine, so no state
// here is shared.
type idleSupervisor struct {
	clock    Clock
	after    time.Duration
	animate  func(ctx context.Context)
	requests chan idleRequest
	logger   *slog.Logger
}

type idleOp int

const (
	idleHold idleOp = iota
	idleRelease
)

type idleRequest struct {
	op  idleOp
	ack chan struct{}
}

func newIdleSupervisor(clock Clock, after time.Duration, animate func(ctx context.Context), logger *slog.Logger) *idleSupervisor {
	return &idleSupervisor{
		clock:    clock,
		after:    after,
		animate:  animate,
		requests: make(chan idleRequest),
		logger:   logger,
	}
}

// run serves ticks and requests until ctx is done. It starts held: no
// animation runs until the first Release. An animation still running at
// exit is stopped and waited for.
func (s *idleSupervisor) run(ctx context.Context, ticks <-chan time.Time) {
	last := s.clock.Now()
	held := true
	var (
		stop context.CancelFunc
		done chan struct{}
	)
	halt := func() {
		if stop == nil {
			return
		}
		stop()
		<-done
		stop, done = nil, nil
		s.logger.Debug("idle animation stopped")
	}

	for {
		select {
		case <-ctx.Done():
			halt()
			return
		case req := <-s.requests:
			switch req.op {
			case idleHold:
				held = true
			case idleRelease:
				held = false
			}
			last = s.clock.Now()
			halt()
			close(req.ack)
		case <-ticks:
			if held || stop != nil || s.clock.Now().Sub(last) < s.after {
				continue
			}
			actx, cancel := context.WithCancel(ctx)
			stop, done = cancel, make(chan struct{})
			go func(done chan struct{}) {
				defer close(done)
				s.animate(actx)
			}(done)
			s.logger.Debug("idle animation started")
		case <-done:
			stop()
			stop, done = nil, nil
		}
	}
}

// Hold stops any idle animation, waiting for it to finish its frame, and
// keeps it off until Release. The
// controller holds while the display shows anything but the ready prompt.
func (s *idleSupervisor) Hold(ctx context.Context) error {
	return s.send(ctx, idleHold)
}

// Release resets the activity clock and lets the idle animation start again
// once the reader has been quiet for the idle period. A running animation is
// stopped first.
func (s *idleSupervisor) Release(ctx context.Context) error {
	return s.send(ctx, idleRelease)
}

func (s *idleSupervisor) send(ctx context.Context, op idleOp) error {
	ack := make(chan struct{})
	select {
	case s.requests <- idleRequest{op: op, ack: ack}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	idleFrameWait = 500 * time.Millisecond
	idleWidth     = 6
)

// idleAnimation slides the ready prompt across the display until stopped
func idleAnimation(sc *screen, clock Clock) func(ctx context.Context) {
	return func(ctx context.Context) {
		for i := 0; ; i++ {
			pos := i % (2 * idleWidth)
			if pos >= idleWidth {
				pos = 2*idleWidth - pos
			}
			sc.frame([]string{strings.Repeat(" ", pos) + "Scan your tag"})
			select {
			case <-ctx.Done():
				return
			case <-clock.After(idleFrameWait):
			}
		}
	}
}
