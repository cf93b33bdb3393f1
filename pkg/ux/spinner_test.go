// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer; the animation goroutine writes
// concurrently with test assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerAnimatesAndClears(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "searching")

	spinner.Start()
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "searching")
	}, 2*time.Second, 10*time.Millisecond)
	spinner.Stop()

	assert.Contains(t, buf.String(), "\r\033[K", "stop clears the line")
}

func TestSpinnerPlainPrintsOnce(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "searching").Plain()

	spinner.Start()
	spinner.Stop()

	assert.Equal(t, "searching\n", buf.String())
}

func TestSpinnerStopIdempotent(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "working")

	spinner.Start()
	spinner.Stop()
	spinner.Stop()
	spinner.Stop()
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "first")

	spinner.Start()
	spinner.UpdateMessage("second")
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "second")
	}, 2*time.Second, 10*time.Millisecond)
	spinner.Stop()
}
