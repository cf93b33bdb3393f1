// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lanternworks/ragline/pkg/streamwire"
	"github.com/lanternworks/ragline/pkg/ux"
	"github.com/lanternworks/ragline/services/engine/datatypes"
)

var (
	chatTenant  string
	chatSession string
	chatOneShot bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Chat with the engine over the raw streaming protocol",
	Long: `Starts an interactive chat session, streaming answers token by token.
Progress phases are shown on stderr so piped stdout stays clean answer
text. With a question argument and --one-shot, asks once and exits.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatTenant, "tenant", envOr("RAGLINE_TENANT_ID", ""), "tenant ID (required)")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session ID to continue")
	chatCmd.Flags().BoolVar(&chatOneShot, "one-shot", false, "ask a single question and exit")
	_ = chatCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		answer, err := streamTurn(strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		if chatOneShot {
			return nil
		}
		return interactiveLoop(historyAfter(nil, strings.Join(args, " "), answer))
	}
	return interactiveLoop(nil)
}

// interactiveLoop reads questions from stdin until EOF, carrying the
// conversation history client-side.
func interactiveLoop(history []datatypes.Message) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "/quit" || query == "/exit" {
			return nil
		}

		answer, err := streamTurn(query, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		history = historyAfter(history, query, answer)
	}
}

func historyAfter(history []datatypes.Message, query, answer string) []datatypes.Message {
	return append(history,
		datatypes.Message{Role: datatypes.RoleUser, Content: query},
		datatypes.Message{Role: datatypes.RoleAssistant, Content: answer},
	)
}

// streamTurn runs one turn against /v1/chat/raw and returns the full
// answer text after the stream ends.
func streamTurn(query string, history []datatypes.Message) (string, error) {
	payload, err := json.Marshal(datatypes.ChatRequest{
		TenantID:  chatTenant,
		SessionID: chatSession,
		Query:     query,
		History:   history,
	})
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(serverURL+"/v1/chat/raw", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	spinner := ux.NewSpinner(os.Stderr, "processing")
	defer spinner.Stop()

	var answer strings.Builder
	var streamErr error
	parser := streamwire.NewParser(
		func(frame streamwire.EventFrame) {
			switch frame.Type {
			case datatypes.StreamEventProgress:
				if frame.Status == string(datatypes.StatusActive) {
					spinner.UpdateMessage(frame.Step)
					spinner.Start()
				}
			case datatypes.StreamEventError:
				spinner.Stop()
				streamErr = fmt.Errorf("%s", frame.Error)
			case datatypes.StreamEventDone:
				spinner.Stop()
				if chatSession == "" {
					chatSession = frame.SessionId
				}
			}
		},
		func(text string) {
			spinner.Stop()
			answer.WriteString(text)
			fmt.Print(text)
		},
	)

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stream read failed: %w", err)
		}
	}
	parser.Close()
	fmt.Println()

	return answer.String(), streamErr
}
