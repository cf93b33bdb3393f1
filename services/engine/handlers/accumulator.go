// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

const (
	// AccumulatorBufferSize is the mlocked buffer size for one streamed
	// answer. 512 KB fits the longest answers the engine produces with
	// headroom.
	AccumulatorBufferSize = 512 * 1024

	// minMlockLimitKB is the smallest mlock limit that supports secure
	// accumulation.
	minMlockLimitKB = 512
)

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// AnswerAccumulator collects streamed answer fragments with incremental
// hashing.
//
// # Description
//
// Fragments are hashed as they arrive, so the final hash covers exactly
// what was streamed. The secure implementation keeps the assembling
// answer in mlocked memory that never reaches swap; the insecure
// fallback uses ordinary memory when the system's mlock limit is too
// low and RAGLINE_INSECURE_MEMORY=true acknowledges the downgrade.
//
// # Thread Safety
//
// Implementations are safe for concurrent use.
type AnswerAccumulator interface {
	// Write appends one fragment. Fails on overflow or after the
	// accumulator is finalized or destroyed.
	Write(fragment string) error

	// Finalize returns the full answer and its hex SHA-256, then wipes
	// the buffer. Single use.
	Finalize() (answer string, hash string, err error)

	// Destroy wipes without returning data. Idempotent; use on error paths.
	Destroy()

	// ID identifies this accumulator in logs.
	ID() string

	// CreatedAt is the instantiation time.
	CreatedAt() time.Time
}

// NewAnswerAccumulator returns a secure accumulator when the system
// allows it.
//
// # Outputs
//
//   - AnswerAccumulator: Secure, or insecure when mlock is insufficient
//     and RAGLINE_INSECURE_MEMORY=true.
//   - error: mlock insufficient and the insecure fallback not opted into.
func NewAnswerAccumulator() (AnswerAccumulator, error) {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
	})

	if !mlockSufficient {
		if os.Getenv("RAGLINE_INSECURE_MEMORY") == "true" {
			slog.Warn("Using insecure answer accumulator, mlock limit too low",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", minMlockLimitKB,
			)
			return newPlainAccumulator(), nil
		}
		return nil, fmt.Errorf(
			"mlock limit insufficient: have %d KB, need %d KB; raise the limit or set RAGLINE_INSECURE_MEMORY=true",
			currentMlockLimitKB, minMlockLimitKB,
		)
	}

	buf := memguard.NewBuffer(AccumulatorBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate secure buffer of %d bytes", AccumulatorBufferSize)
	}
	buf.Melt()

	return &secureAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		buffer:    buf,
		hasher:    sha256.New(),
	}, nil
}

func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

// =============================================================================
// Secure Implementation
// =============================================================================

// secureAccumulator keeps the assembling answer in an mlocked memguard
// buffer: no swap, guard pages, explicit zeroing on destroy.
type secureAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func (a *secureAccumulator) Write(fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("secure buffer overflow, answer too large")
	}

	b := []byte(fragment)
	if a.offset+len(b) > AccumulatorBufferSize {
		a.overflow = true
		return fmt.Errorf("secure buffer overflow: need %d bytes, have %d remaining",
			len(b), AccumulatorBufferSize-a.offset)
	}

	copy(a.buffer.Bytes()[a.offset:], b)
	a.offset += len(b)
	a.hasher.Write(b)
	return nil
}

func (a *secureAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	answer := string(a.buffer.Bytes()[:a.offset])
	hashStr := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()

	slog.Debug("Finalized answer accumulator",
		"accumulator_id", a.id,
		"answer_length", len(answer),
	)
	return answer, hashStr, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

func (a *secureAccumulator) ID() string           { return a.id }
func (a *secureAccumulator) CreatedAt() time.Time { return a.createdAt }

// =============================================================================
// Insecure Fallback
// =============================================================================

// plainAccumulator uses ordinary Go memory. Zeroing on destroy is best
// effort; the GC may have copied the data.
type plainAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	data      []byte
	hasher    hash.Hash
	overflow  bool
	destroyed bool
}

func newPlainAccumulator() AnswerAccumulator {
	return &plainAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		data:      make([]byte, 0, AccumulatorBufferSize),
		hasher:    sha256.New(),
	}
}

func (a *plainAccumulator) Write(fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("buffer overflow, answer too large")
	}

	b := []byte(fragment)
	if len(a.data)+len(b) > AccumulatorBufferSize {
		a.overflow = true
		return fmt.Errorf("buffer overflow: need %d bytes, have %d remaining",
			len(b), AccumulatorBufferSize-len(a.data))
	}

	a.data = append(a.data, b...)
	a.hasher.Write(b)
	return nil
}

func (a *plainAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", "", fmt.Errorf("buffer overflowed during accumulation")
	}

	answer := string(a.data)
	hashStr := hex.EncodeToString(a.hasher.Sum(nil))
	a.wipe()
	return answer, hashStr, nil
}

func (a *plainAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *plainAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

func (a *plainAccumulator) ID() string           { return a.id }
func (a *plainAccumulator) CreatedAt() time.Time { return a.createdAt }

var (
	_ AnswerAccumulator = (*secureAccumulator)(nil)
	_ AnswerAccumulator = (*plainAccumulator)(nil)
)
