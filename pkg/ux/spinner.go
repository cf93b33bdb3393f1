// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal affordances for the ragline CLI.
package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress indicator on one terminal line. It writes
// carriage returns, so point it at a TTY stream (stderr), never at
// piped output.
type Spinner struct {
	w  io.Writer
	mu sync.Mutex

	message string
	stop    chan struct{}
	done    chan struct{}
	running bool
	plain   bool
}

// NewSpinner creates a stopped spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{w: w, message: message}
}

// Plain disables animation; Start prints the message once instead.
// For non-TTY destinations and machine-readable output modes.
func (s *Spinner) Plain() *Spinner {
	s.plain = true
	return s
}

// Start begins animating. A running spinner ignores further Starts.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	if s.plain {
		fmt.Fprintf(s.w, "%s\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate(s.stop, s.done)
}

func (s *Spinner) animate(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-stop:
			fmt.Fprint(s.w, "\r\033[K")
			close(done)
			return
		case <-ticker.C:
			s.mu.Lock()
			message := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[frame], message)
			frame = (frame + 1) % len(spinnerFrames)
		}
	}
}

// UpdateMessage swaps the text shown next to the animation.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop halts the animation and clears the line. Idempotent.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	plain := s.plain
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if plain {
		return
	}
	close(stop)
	<-done
}
