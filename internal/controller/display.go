package controller

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// screen serializes access to the display and lays out every frame with the
// door header and the device address footer. Render failures are logged and
// followed by a bounded re-init; they never reach the caller.
type screen struct {
	mu        sync.Mutex
	dev       Display
	indicator Indicator
	clock     Clock
	doorID    int64
	addr      string
	attempts  int
	initWait  time.Duration
	logger    *slog.Logger
}

func (s *screen) setAddress(addr string) {
	s.mu.Lock()
	s.addr = addr
	s.mu.Unlock()
}

// init tries the display up to attempts times. It reports whether the
// display came up.
func (s *screen) init() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *screen) initLocked() bool {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := s.dev.Init()
		if err == nil {
			return true
		}
		s.logger.Warn("display init failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.attempts),
			slog.String("error", err.Error()),
		)
		if attempt < s.attempts {
			<-s.clock.After(s.initWait)
		}
	}
	s.logger.Error("display unavailable", slog.Int("attempts", s.attempts))
	return false
}

// show renders msg; embedded newlines split it into lines
func (s *screen) show(msg string) {
	s.frame(strings.Split(msg, "\n"))
}

func (s *screen) frame(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fr := Screen{
		Header: fmt.Sprintf("Door ID: %d", s.doorID),
		Lines:  lines,
		Footer: s.addr,
	}
	err := s.dev.Show(fr)
	if err == nil {
		return
	}
	s.logger.Error("display error", slog.String("error", err.Error()))
	if ierr := s.indicator.Signal(SignalOff); ierr != nil {
		s.logger.Warn("indicator reset failed", slog.String("error", ierr.Error()))
	}
	if !s.initLocked() {
		return
	}
	if err := s.dev.Show(fr); err != nil {
		s.logger.Error("display error after re-init", slog.String("error", err.Error()))
	}
}
