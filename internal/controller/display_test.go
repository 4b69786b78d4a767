package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestScreen(dev *fakeDisplay, ind *fakeIndicator, clock *fakeClock) *screen {
	return &screen{
		dev:       dev,
		indicator: ind,
		clock:     clock,
		doorID:    12,
		addr:      "192.168.1.20",
		attempts:  3,
		initWait:  time.Second,
		logger:    discard,
	}
}

func TestScreen_LayoutSplitsLines(t *testing.T) {
	dev := &fakeDisplay{}
	sc := newTestScreen(dev, &fakeIndicator{}, newFakeClock())

	sc.show("Access Granted\nbob@corp.example")

	assert.Equal(t, Screen{
		Header: "Door ID: 12",
		Lines:  []string{"Access Granted", "bob@corp.example"},
		Footer: "192.168.1.20",
	}, dev.last())
}

func TestScreen_RenderErrorReinitializes(t *testing.T) {
	dev := &fakeDisplay{showFails: 1}
	ind := &fakeIndicator{}
	sc := newTestScreen(dev, ind, newFakeClock())

	sc.show("Checking...")

	assert.Equal(t, 1, dev.inits)
	assert.Equal(t, []Signal{SignalOff}, ind.history())
	assert.Equal(t, []string{"Checking..."}, dev.messages())
}

func TestScreen_ReinitIsBounded(t *testing.T) {
	dev := &fakeDisplay{showFails: 1, initFails: 10}
	clock := newFakeClock()
	sc := newTestScreen(dev, &fakeIndicator{}, clock)

	sc.show("Checking...")

	assert.Equal(t, 3, dev.inits)
	assert.Len(t, clock.waitsOf(time.Second), 2)
	assert.Empty(t, dev.messages())
}
