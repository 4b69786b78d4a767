package controller

import (
	"log/slog"
	"sync/atomic"
)

// State is the connectivity state of the reader
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateServerUnreachable
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateServerUnreachable:
		return "server_unreachable"
	default:
		return "unknown"
	}
}

type connState struct {
	v      atomic.Int32
	logger *slog.Logger
}

func (c *connState) get() State { return State(c.v.Load()) }

func (c *connState) set(s State) {
	prev := State(c.v.Swap(int32(s)))
	if prev != s {
		c.logger.Info("connectivity changed",
			slog.String("from", prev.String()),
			slog.String("to", s.String()),
		)
	}
}
