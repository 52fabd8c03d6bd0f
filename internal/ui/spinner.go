package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// Spinner is a non-interactive spinner for short waits, e.g. connecting to
// the container runtime.
type Spinner struct {
	w       io.Writer
	frames  spinner.Spinner
	message string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSpinner creates a spinner writing to w
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		frames:  spinner.Dot,
		message: message,
		done:    make(chan struct{}),
	}
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	style := lipgloss.NewStyle().Foreground(PrimaryColor)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.frames.FPS)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(s.frames.Frames) {
			fmt.Fprintf(s.w, "\r  %s %s", style.Render(s.frames.Frames[i]), WhiteStyle.Render(s.message))
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and replaces its line with a status message.
func (s *Spinner) Stop(status, message string) {
	close(s.done)
	s.wg.Wait()
	fmt.Fprint(s.w, "\r\033[K")
	if message != "" {
		fmt.Fprintln(s.w, RenderStatus(status, message))
	}
}

// WithSpinner executes fn while showing a spinner
func WithSpinner(w io.Writer, message string, fn func() error) error {
	s := NewSpinner(w, message)
	s.Start()
	if err := fn(); err != nil {
		s.Stop("error", err.Error())
		return err
	}
	s.Stop("success", message+" - done")
	return nil
}
