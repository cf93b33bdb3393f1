// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memory bounds conversation history to a recent window.
package memory

import "github.com/lanternworks/ragline/services/engine/datatypes"

// Two windows on purpose: the persisted history is a superset buffer,
// the prompt history is a tighter latency/cost-controlled slice.
const (
	// PromptWindow is the number of turns sent to the model.
	PromptWindow = 6

	// PersistWindow is the number of turns returned to the caller to store.
	PersistWindow = 10
)

// Trim returns the last limit turns of history, preserving order.
// Pure: never mutates the input, never errors. A limit <= 0 yields an
// empty slice.
func Trim(history []datatypes.Message, limit int) []datatypes.Message {
	if limit <= 0 || len(history) == 0 {
		return []datatypes.Message{}
	}
	if len(history) <= limit {
		out := make([]datatypes.Message, len(history))
		copy(out, history)
		return out
	}
	out := make([]datatypes.Message, limit)
	copy(out, history[len(history)-limit:])
	return out
}
