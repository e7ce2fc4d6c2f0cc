package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState is where a spinner is in its life.
type SpinnerState int

const (
	SpinnerIdle SpinnerState = iota
	SpinnerRunning
	SpinnerDone
	SpinnerFailed
)

var spinnerFrames = []string{"◐", "◓", "◑", "◒"}

const spinnerInterval = 120 * time.Millisecond

// Spinner animates a single status line while a slow step runs, then
// replaces it with a final line carrying the elapsed time. Only use it on
// a terminal: every frame rewrites the line with a carriage return.
type Spinner struct {
	mu      sync.Mutex
	label   string
	state   SpinnerState
	frame   int
	started time.Time
	width   int
	output  func(string)

	stop chan struct{}
	done chan struct{}
}

// NewSpinner returns an idle spinner that prints to stdout.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		label:  label,
		output: func(s string) { fmt.Print(s) },
	}
}

// SetOutput redirects the spinner's writes.
func (s *Spinner) SetOutput(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = fn
}

// Start draws the first frame and animates until Stop, Success or Fail.
// Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.state == SpinnerRunning {
		s.mu.Unlock()
		return
	}
	s.state = SpinnerRunning
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.drawLocked()
	s.mu.Unlock()

	go s.animate(s.stop, s.done)
}

// Stop halts the animation and leaves the state alone.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Success stops the spinner and prints a completed line.
func (s *Spinner) Success() { s.finish(SpinnerDone) }

// Fail stops the spinner and prints a failed line.
func (s *Spinner) Fail() { s.finish(SpinnerFailed) }

// State returns the spinner's current state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Spinner) animate(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.drawLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) finish(state SpinnerState) {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state

	symbol, color := SymbolComplete, ColorSuccess
	if state == SpinnerFailed {
		symbol, color = SymbolFail, ColorError
	}
	var elapsed time.Duration
	if !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	s.clearLocked()
	s.output(FormatPhase(symbol, color, s.label, formatDuration(elapsed)) + "\n")
}

// drawLocked rewrites the current line. The caller holds mu.
func (s *Spinner) drawLocked() {
	s.clearLocked()
	symbol := lipgloss.NewStyle().Foreground(ColorSecondary).Render(spinnerFrames[s.frame])
	line := symbol + " " + s.label + "..."
	s.output("\r" + line)
	s.width = len([]rune(line))
}

func (s *Spinner) clearLocked() {
	if s.width == 0 {
		return
	}
	s.output("\r" + strings.Repeat(" ", s.width) + "\r")
	s.width = 0
}
