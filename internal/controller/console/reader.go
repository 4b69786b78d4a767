// Package console provides host-side stand-ins for the reader hardware: tags
// typed on a terminal, a rendered status box, and logged indicators.
package console

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aryan0dhankhar/doorgate/internal/controller"
)

// LineReader presents one tag per input line. A line of colon separated hex
// bytes ("88:12:3e:03:5a") is converted to the stored decimal form; anything
// else is used as the UID verbatim.
type LineReader struct {
	lines chan string
}

// NewLineReader starts scanning r in the background
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{lines: make(chan string)}
	go func() {
		defer close(lr.lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				lr.lines <- line
			}
		}
	}()
	return lr
}

// Read returns the next typed tag if one is waiting
func (lr *LineReader) Read(ctx context.Context) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line, ok := <-lr.lines:
		if !ok {
			return "", false, nil
		}
		uid, err := parseUID(line)
		if err != nil {
			return "", false, err
		}
		return uid, true, nil
	default:
		return "", false, nil
	}
}

func parseUID(line string) (string, error) {
	if !strings.Contains(line, ":") {
		return line, nil
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(line, ":", ""))
	if err != nil {
		return "", fmt.Errorf("invalid tag bytes %q: %w", line, err)
	}
	return controller.UIDFromBytes(raw), nil
}
