// Package progress shows activity while the terminal client waits on the
// server.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Indicator is started when a wait begins and stopped when it ends.
type Indicator interface {
	Start(message string)
	Stop()
}

// NewIndicator returns a TerminalSpinner writing to w, or a LineIndicator
// if the CI environment variable is set.
func NewIndicator(w io.Writer) Indicator {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineIndicator{out: w}
	}
	return &TerminalSpinner{out: w}
}

// TerminalSpinner animates an indeterminate progress bar until stopped.
type TerminalSpinner struct {
	out io.Writer

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	done chan struct{}
}

func (s *TerminalSpinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		return
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription(message),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	s.done = make(chan struct{})
	go s.spin(s.bar, s.done)
}

func (s *TerminalSpinner) spin(bar *progressbar.ProgressBar, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

func (s *TerminalSpinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar == nil {
		return
	}
	close(s.done)
	_ = s.bar.Finish()
	s.bar = nil
}

// LineIndicator prints one line per wait, for logs without a terminal.
type LineIndicator struct {
	out   io.Writer
	start time.Time
}

func (l *LineIndicator) Start(message string) {
	l.start = time.Now()
	fmt.Fprintln(l.out, message)
}

func (l *LineIndicator) Stop() {
	fmt.Fprintf(l.out, "done in %s\n", time.Since(l.start).Round(time.Millisecond))
}
