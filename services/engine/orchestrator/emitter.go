// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import "github.com/lanternworks/ragline/services/engine/datatypes"

// EventEmitter receives turn progress as it happens. Transports adapt
// it onto SSE, the sentinel byte stream, or discard it on the blocking
// path.
type EventEmitter interface {
	// Progress reports a phase transition. Emitters must preserve call
	// order; the orchestrator guarantees active precedes complete for
	// each phase.
	Progress(step datatypes.Step, status datatypes.StepStatus)

	// Token delivers one answer fragment. A non-nil return aborts the
	// turn (client gone).
	Token(content string) error

	// Sources delivers the ranked source list once retrieval finishes.
	Sources(sources []datatypes.SourceInfo)
}

// NullEmitter discards everything. Used on the blocking path.
type NullEmitter struct{}

func (NullEmitter) Progress(datatypes.Step, datatypes.StepStatus) {}
func (NullEmitter) Token(string) error                            { return nil }
func (NullEmitter) Sources([]datatypes.SourceInfo)                {}

var _ EventEmitter = NullEmitter{}
