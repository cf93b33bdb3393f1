// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package streamwire

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Parser
// =============================================================================

// parserState is the consumer-side state machine position.
type parserState int

const (
	// stateAwaitingToken scans literal text for the opening sentinel.
	stateAwaitingToken parserState = iota

	// stateInsideSentinel accumulates an event payload until the
	// closing sentinel arrives.
	stateInsideSentinel
)

// Parser incrementally decodes the wire format, producing two logical
// output channels: decoded events and literal text fragments.
//
// # Description
//
// Feed accepts arbitrary chunk boundaries; sentinels split across chunks
// are handled by holding back the longest buffer suffix that could still
// be a sentinel prefix. An opened block whose payload fails to decode as
// event JSON is replayed verbatim as text (sentinel collision), so
// literal answer text containing the sentinel substring is never lost.
//
// # Thread Safety
//
// Not safe for concurrent use. Feed/Close from one goroutine only.
type Parser struct {
	onEvent func(EventFrame)
	onText  func(string)

	state parserState
	buf   strings.Builder
}

// EventFrame is one decoded wire event.
type EventFrame struct {
	Type      string `json:"type"`
	Step      string `json:"step,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionId string `json:"sessionId,omitempty"`
}

// NewParser creates a Parser. Either callback may be nil.
func NewParser(onEvent func(EventFrame), onText func(string)) *Parser {
	if onEvent == nil {
		onEvent = func(EventFrame) {}
	}
	if onText == nil {
		onText = func(string) {}
	}
	return &Parser{onEvent: onEvent, onText: onText}
}

// Feed consumes one chunk of the stream.
func (p *Parser) Feed(chunk []byte) {
	p.buf.WriteString(string(chunk))
	p.drain(false)
}

// Close flushes whatever remains. An unterminated event block is flushed
// as literal text, opening sentinel included.
func (p *Parser) Close() {
	p.drain(true)
	rest := p.buf.String()
	p.buf.Reset()
	if p.state == stateInsideSentinel {
		rest = SentinelOpen + rest
		p.state = stateAwaitingToken
	}
	if rest != "" {
		p.onText(rest)
	}
}

// drain advances the state machine as far as the buffered bytes allow.
func (p *Parser) drain(final bool) {
	for {
		buf := p.buf.String()

		switch p.state {
		case stateAwaitingToken:
			i := strings.Index(buf, SentinelOpen)
			if i >= 0 {
				if i > 0 {
					p.onText(buf[:i])
				}
				p.setBuf(buf[i+len(SentinelOpen):])
				p.state = stateInsideSentinel
				continue
			}
			if final {
				return
			}
			// Hold back a possible split sentinel prefix, emit the rest.
			hold := suffixPrefixLen(buf, SentinelOpen)
			if emit := buf[:len(buf)-hold]; emit != "" {
				p.onText(emit)
				p.setBuf(buf[len(buf)-hold:])
			}
			return

		case stateInsideSentinel:
			i := strings.Index(buf, SentinelClose)
			if i < 0 {
				return
			}
			payload := buf[:i]
			p.setBuf(buf[i+len(SentinelClose):])
			p.state = stateAwaitingToken

			var frame EventFrame
			if err := json.Unmarshal([]byte(payload), &frame); err != nil || frame.Type == "" {
				// Collision: answer text that happens to contain the
				// sentinel pair. Replay it untouched.
				p.onText(SentinelOpen + payload + SentinelClose)
				continue
			}
			p.onEvent(frame)
		}
	}
}

func (p *Parser) setBuf(s string) {
	p.buf.Reset()
	p.buf.WriteString(s)
}

// suffixPrefixLen returns the length of the longest suffix of s that is
// a proper prefix of marker.
func suffixPrefixLen(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(marker, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}
