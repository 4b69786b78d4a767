package console

import (
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/doorgate/internal/controller"
)

// LogIndicator reports indicator changes to the log
type LogIndicator struct {
	mu     sync.Mutex
	state  controller.Signal
	logger *slog.Logger
}

func NewLogIndicator(logger *slog.Logger) *LogIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogIndicator{logger: logger}
}

func (i *LogIndicator) Signal(s controller.Signal) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s == i.state {
		return nil
	}
	i.logger.Info("indicator", slog.String("from", i.state.String()), slog.String("to", s.String()))
	i.state = s
	return nil
}

// State returns the indicator currently lit
func (i *LogIndicator) State() controller.Signal {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}
