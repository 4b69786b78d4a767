package controller

import (
	"context"
	"strconv"
	"strings"
)

// TagReader polls the RFID reader. ok is false when no tag is presented.
type TagReader interface {
	Read(ctx context.Context) (uid string, ok bool, err error)
}

// Screen is one full frame of the status display
type Screen struct {
	Header string
	Lines  []string
	Footer string
}

// Display renders frames on the local status screen
type Display interface {
	Init() error
	Show(s Screen) error
}

// Signal is the state of the grant/deny indicators
type Signal int

const (
	SignalOff Signal = iota
	SignalGrant
	SignalDeny
)

func (s Signal) String() string {
	switch s {
	case SignalGrant:
		return "grant"
	case SignalDeny:
		return "deny"
	default:
		return "off"
	}
}

// Indicator drives the grant/deny lights
type Indicator interface {
	Signal(s Signal) error
}

// Link is the device network link. Connect returns the device address once
// the link is up.
type Link interface {
	Connect(ctx context.Context) (addr string, err error)
	Connected() bool
}

// UIDFromBytes formats a raw tag UID the way the server stores it: each byte
// in decimal, concatenated.
func UIDFromBytes(b []byte) string {
	var sb strings.Builder
	for _, v := range b {
		sb.WriteString(strconv.Itoa(int(v)))
	}
	return sb.String()
}
