// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestChatRequestValidation exercises the validator tags on ChatRequest,
// including the notblank custom rule.
func TestChatRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			name:    "valid minimal",
			req:     ChatRequest{TenantID: "acme", Query: "What is the return policy?"},
			wantErr: false,
		},
		{
			name:    "missing tenant",
			req:     ChatRequest{Query: "hello"},
			wantErr: true,
		},
		{
			name:    "blank query",
			req:     ChatRequest{TenantID: "acme", Query: "   "},
			wantErr: true,
		},
		{
			name: "bad history role",
			req: ChatRequest{
				TenantID: "acme",
				Query:    "q",
				History:  []Message{{Role: "narrator", Content: "x"}},
			},
			wantErr: true,
		},
		{
			name: "valid with history",
			req: ChatRequest{
				TenantID: "acme",
				Query:    "and shipping?",
				History: []Message{
					{Role: RoleUser, Content: "return policy?"},
					{Role: RoleAssistant, Content: "30 days."},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChatRequestEnsureDefaults(t *testing.T) {
	req := ChatRequest{TenantID: "acme", Query: "  hello  "}
	req.EnsureDefaults()
	assert.Equal(t, "hello", req.Query)
	assert.NotNil(t, req.History)
}

func TestRetrievalResultSourcesOf(t *testing.T) {
	r := RetrievalResult{Chunks: []RetrievedChunk{
		{Text: "a", Source: "doc1.md", Score: 0.9},
		{Text: "b", Source: "doc2.md", Score: 0.7},
	}}
	sources := r.SourcesOf()
	assert.Equal(t, []SourceInfo{
		{Source: "doc1.md", Score: 0.9},
		{Source: "doc2.md", Score: 0.7},
	}, sources)

	empty := RetrievalResult{}
	assert.Nil(t, empty.SourcesOf())
}
