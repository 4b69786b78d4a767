package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	msgInitializing   = "Initializing..."
	msgLinkConnected  = "Link Connected"
	msgServerFail     = "Server Fail"
	msgReconnecting   = "Reconnecting..."
	msgReconnectError = "Reconnect Error"
	msgReconnected    = "Server Reconnected"
	msgServerUp       = "Server Connected"
	msgChecking       = "Checking..."
	msgGranted        = "Access Granted"
	msgDenied         = "Access Denied"
	msgReady          = "Scan your tag"

	selfTestDuration = 500 * time.Millisecond
	displayInitWait  = time.Second
)

// Config tunes the reader loop
type Config struct {
	DoorID              int64
	PollInterval        time.Duration
	Dwell               time.Duration
	IdleAfter           time.Duration
	IdleTick            time.Duration
	DisplayInitAttempts int
	EscalateAfter       int
	RetryWait           time.Duration
	EscalatedWait       time.Duration
	LinkRetryWait       time.Duration
}

// Hardware bundles the device capabilities the controller drives
type Hardware struct {
	Reader    TagReader
	Display   Display
	Indicator Indicator
	Link      Link
	Clock     Clock
}

// Controller runs one door reader: it keeps the link and the server
// reachable, polls for tags, and renders each decision.
type Controller struct {
	cfg       Config
	reader    TagReader
	indicator Indicator
	link      Link
	clock     Clock
	client    *DecisionClient
	screen    *screen
	idle      *idleSupervisor
	state     *connState
	logger    *slog.Logger
}

// New wires a controller. A nil clock uses the wall clock.
func New(cfg Config, hw Hardware, client *DecisionClient, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if hw.Clock == nil {
		hw.Clock = RealClock{}
	}
	if cfg.DisplayInitAttempts < 1 {
		cfg.DisplayInitAttempts = 1
	}
	if cfg.EscalateAfter < 1 {
		cfg.EscalateAfter = 1
	}
	if cfg.IdleTick <= 0 {
		cfg.IdleTick = time.Second
	}
	logger = logger.With(slog.Int64("door_id", cfg.DoorID))

	sc := &screen{
		dev:       hw.Display,
		indicator: hw.Indicator,
		clock:     hw.Clock,
		doorID:    cfg.DoorID,
		attempts:  cfg.DisplayInitAttempts,
		initWait:  displayInitWait,
		logger:    logger,
	}
	return &Controller{
		cfg:       cfg,
		reader:    hw.Reader,
		indicator: hw.Indicator,
		link:      hw.Link,
		clock:     hw.Clock,
		client:    client,
		screen:    sc,
		idle:      newIdleSupervisor(hw.Clock, cfg.IdleAfter, idleAnimation(sc, hw.Clock), logger),
		state:     &connState{logger: logger},
		logger:    logger,
	}
}

// State reports the current connectivity state
func (c *Controller) State() State { return c.state.get() }

// Run drives the reader until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	c.selfTest(ctx)
	c.screen.init()
	c.screen.show(msgInitializing)

	ticker := time.NewTicker(c.cfg.IdleTick)
	defer ticker.Stop()
	idleDone := make(chan struct{})
	idleCtx, stopIdle := context.WithCancel(ctx)
	go func() {
		defer close(idleDone)
		c.idle.run(idleCtx, ticker.C)
	}()
	defer func() {
		stopIdle()
		<-idleDone
	}()

	if err := c.connect(ctx); err != nil {
		return nilIfCanceled(err)
	}
	c.ready(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if !c.link.Connected() {
			c.logger.Warn("link lost")
			c.state.set(StateDisconnected)
			if err := c.connect(ctx); err != nil {
				return nilIfCanceled(err)
			}
			c.ready(ctx)
			continue
		}

		uid, ok, err := c.reader.Read(ctx)
		if err != nil {
			c.logger.Warn("tag read failed", slog.String("error", err.Error()))
		}
		if err != nil || !ok {
			if !c.wait(ctx, c.cfg.PollInterval) {
				return nil
			}
			continue
		}
		if err := c.handleTag(ctx, uid); err != nil {
			return nilIfCanceled(err)
		}
	}
}

func (c *Controller) handleTag(ctx context.Context, uid string) error {
	if err := c.idle.Hold(ctx); err != nil {
		return err
	}
	c.logger.Info("tag read", slog.String("tag_uid", uid))
	c.screen.show(msgChecking)

	res, err := c.client.Decide(ctx, uid, c.cfg.DoorID)
	switch {
	case errors.Is(err, ErrTransport):
		c.logger.Error("decision request failed", slog.String("tag_uid", uid), slog.String("error", err.Error()))
		if rerr := c.recover(ctx); rerr != nil {
			return rerr
		}
		res = Result{}
	case err != nil:
		c.logger.Error("decision rejected", slog.String("tag_uid", uid), slog.String("error", err.Error()))
		res = Result{}
	}

	if res.Granted {
		c.logger.Info("access granted", slog.String("tag_uid", uid), slog.String("upn", res.UPN))
		c.screen.show(msgGranted + "\n" + res.UPN)
		c.signal(SignalGrant)
	} else {
		c.logger.Info("access denied", slog.String("tag_uid", uid))
		c.screen.show(msgDenied)
		c.signal(SignalDeny)
	}

	if !c.wait(ctx, c.cfg.Dwell) {
		return ctx.Err()
	}
	c.signal(SignalOff)
	c.ready(ctx)
	return nil
}

// ready puts the prompt back up and lets the idle animation take over again
func (c *Controller) ready(ctx context.Context) {
	c.screen.show(msgReady)
	_ = c.idle.Release(ctx)
}

// connect brings the link up, then makes sure the server answers
func (c *Controller) connect(ctx context.Context) error {
	if err := c.idle.Hold(ctx); err != nil {
		return err
	}
	c.state.set(StateConnecting)
	var addr string
	for {
		a, err := c.link.Connect(ctx)
		if err == nil && a != "" {
			addr = a
			break
		}
		if err != nil {
			c.logger.Debug("link not ready", slog.String("error", err.Error()))
		}
		if !c.wait(ctx, c.cfg.LinkRetryWait) {
			return ctx.Err()
		}
	}
	c.screen.setAddress(addr)
	c.state.set(StateConnected)
	c.logger.Info("link connected", slog.String("addr", addr))
	c.screen.show(msgLinkConnected)

	if err := c.client.Probe(ctx); err != nil {
		c.logger.Warn("server probe failed", slog.String("error", err.Error()))
		c.screen.show(msgServerFail)
		if err := c.recover(ctx); err != nil {
			return err
		}
	}
	c.screen.show(msgServerUp)
	return nil
}

// recover probes the server until it answers. Retries start after
// RetryWait and move to EscalatedWait once EscalateAfter attempts in a row
// have failed.
func (c *Controller) recover(ctx context.Context) error {
	if err := c.idle.Hold(ctx); err != nil {
		return err
	}
	c.state.set(StateServerUnreachable)
	failures := 0
	for {
		err := c.client.Probe(ctx)
		if err == nil {
			c.state.set(StateConnected)
			c.screen.show(msgReconnected)
			c.logger.Info("server reconnected", slog.Int("failed_attempts", failures))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		wait := c.cfg.RetryWait
		if failures >= c.cfg.EscalateAfter {
			wait = c.cfg.EscalatedWait
		}
		if errors.Is(err, ErrTransport) {
			c.screen.show(msgReconnectError)
		} else {
			c.screen.show(msgReconnecting)
		}
		c.logger.Warn("server unreachable",
			slog.Int("attempt", failures),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
		if !c.wait(ctx, wait) {
			return ctx.Err()
		}
	}
}

// selfTest blinks each indicator once
func (c *Controller) selfTest(ctx context.Context) {
	for _, s := range []Signal{SignalGrant, SignalDeny} {
		c.signal(s)
		c.wait(ctx, selfTestDuration)
		c.signal(SignalOff)
	}
}

func (c *Controller) signal(s Signal) {
	if err := c.indicator.Signal(s); err != nil {
		c.logger.Warn("indicator failed", slog.String("signal", s.String()), slog.String("error", err.Error()))
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

func nilIfCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
