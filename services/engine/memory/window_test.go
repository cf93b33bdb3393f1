// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanternworks/ragline/services/engine/datatypes"
)

func makeHistory(n int) []datatypes.Message {
	out := make([]datatypes.Message, 0, n)
	for i := 0; i < n; i++ {
		role := datatypes.RoleUser
		if i%2 == 1 {
			role = datatypes.RoleAssistant
		}
		out = append(out, datatypes.Message{Role: role, Content: fmt.Sprintf("turn-%d", i)})
	}
	return out
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name      string
		histLen   int
		limit     int
		wantLen   int
		wantFirst string
	}{
		{"twenty turns to prompt window", 20, PromptWindow, 6, "turn-14"},
		{"twenty turns to persist window", 20, PersistWindow, 10, "turn-10"},
		{"shorter than limit", 4, PromptWindow, 4, "turn-0"},
		{"exact limit", 6, PromptWindow, 6, "turn-0"},
		{"empty history", 0, PromptWindow, 0, ""},
		{"zero limit", 5, 0, 0, ""},
		{"negative limit", 5, -1, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trim(makeHistory(tt.histLen), tt.limit)
			assert.Len(t, got, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFirst, got[0].Content)
				assert.Equal(t, fmt.Sprintf("turn-%d", tt.histLen-1), got[len(got)-1].Content)
			}
		})
	}
}

// TestTrimDoesNotMutate verifies Trim returns a copy; appending to the
// result must not touch the caller's slice.
func TestTrimDoesNotMutate(t *testing.T) {
	history := makeHistory(3)
	got := Trim(history, 10)
	got[0].Content = "edited"
	assert.Equal(t, "turn-0", history[0].Content)
}
