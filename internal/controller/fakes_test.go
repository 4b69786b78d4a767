package controller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var discard = slog.New(slog.DiscardHandler)

// fakeClock has a settable Now. After records the requested duration, moves
// Now forward by it and fires immediately.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// waitsOf returns the recorded waits that match one of ds, in order
func (c *fakeClock) waitsOf(ds ...time.Duration) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, w := range c.waits {
		for _, d := range ds {
			if w == d {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

// fakeReader hands out queued tags, then reports no tag. drained is closed
// the first time the queue is found empty after all tags were handled.
type fakeReader struct {
	mu      sync.Mutex
	tags    []string
	drained chan struct{}
	once    sync.Once
}

func newFakeReader(tags ...string) *fakeReader {
	return &fakeReader{tags: tags, drained: make(chan struct{})}
}

func (r *fakeReader) Read(context.Context) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tags) == 0 {
		r.once.Do(func() { close(r.drained) })
		return "", false, nil
	}
	uid := r.tags[0]
	r.tags = r.tags[1:]
	return uid, true, nil
}

type fakeDisplay struct {
	mu        sync.Mutex
	frames    []Screen
	inits     int
	initFails int
	showFails int
}

func (d *fakeDisplay) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	if d.initFails > 0 {
		d.initFails--
		return errors.New("i2c: no ack")
	}
	return nil
}

func (d *fakeDisplay) Show(s Screen) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.showFails > 0 {
		d.showFails--
		return errors.New("i2c: bus error")
	}
	d.frames = append(d.frames, s)
	return nil
}

// messages returns each shown frame body joined by newlines
func (d *fakeDisplay) messages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.frames))
	for _, f := range d.frames {
		out = append(out, strings.Join(f.Lines, "\n"))
	}
	return out
}

func (d *fakeDisplay) last() Screen {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames[len(d.frames)-1]
}

type fakeIndicator struct {
	mu      sync.Mutex
	signals []Signal
}

func (i *fakeIndicator) Signal(s Signal) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.signals = append(i.signals, s)
	return nil
}

func (i *fakeIndicator) history() []Signal {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Signal(nil), i.signals...)
}

// fakeLink fails the first failures dials. With dropAt set, the link goes
// down on that Connected check and the next redialFailures dials fail.
type fakeLink struct {
	addr           string
	failures       int
	dropAt         int
	redialFailures int

	mu       sync.Mutex
	checks   int
	down     bool
	connects int
}

func (l *fakeLink) Connect(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
		return "", errors.New("no carrier")
	}
	l.down = false
	l.connects++
	return l.addr, nil
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks++
	if l.dropAt > 0 && l.checks == l.dropAt {
		l.down = true
		l.failures = l.redialFailures
	}
	return !l.down
}

func (l *fakeLink) dials() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects
}

// indexAfter returns the index of want in msgs at or after from, or -1
func indexAfter(msgs []string, from int, want string) int {
	for i := from; i < len(msgs); i++ {
		if msgs[i] == want {
			return i
		}
	}
	return -1
}
