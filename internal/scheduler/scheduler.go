// Package scheduler implements the scheduler sub-agent: a tool-calling
// loop over six calendar tools, driven by a language model, that
// terminates when the model stops emitting tool calls.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/common/logger"
	"mailrelay.app/engine/internal/model"
)

const (
	// DefaultMaxIterations bounds the loop when the caller doesn't
	// configure one; the source this engine is modeled on leaves the cap
	// unspecified, so a finite default is required.
	DefaultMaxIterations = 10

	doomLoopThreshold = 3
	messageWindow     = 5
)

// Scheduler drives the calendar tool-calling loop for one email.
type Scheduler struct {
	llm           llm.AgentClient
	tools         *Tools
	maxIterations int
}

// New builds a Scheduler. maxIterations <= 0 uses DefaultMaxIterations.
func New(client llm.AgentClient, tools *Tools, maxIterations int) *Scheduler {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Scheduler{llm: client, tools: tools, maxIterations: maxIterations}
}

type toolCallRecord struct {
	name string
	args string
}

// Run drives the loop to completion and returns the model's final text
// as the agent outcome. senderAddress is assumed always available;
// userAddress is the calendar of record. userHint carries any
// instruction the human attached when triggering scheduling.
func (s *Scheduler) Run(ctx context.Context, email model.EmailContext, userHint, senderAddress, userAddress string) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scheduler"})

	now := time.Now()
	system := fmt.Sprintf(
		"You are a scheduling assistant. Today is %s, tomorrow is %s. "+
			"Check only the user's own calendar (%s) for availability; the sender's address (%s) is assumed available and not checked. "+
			"If the request implies changing an existing meeting, cancel the original event before scheduling the new one. "+
			"When you have a final answer for the user, respond with plain text and no tool calls.",
		now.Format("Monday, January 2, 2006"),
		now.AddDate(0, 0, 1).Format("Monday, January 2, 2006"),
		userAddress, senderAddress,
	)

	userContent := email.Body
	if userHint != "" {
		userContent = fmt.Sprintf("%s\n\nUser instruction: %s", email.Body, userHint)
	}

	history := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: userContent},
	}

	var recentCalls []toolCallRecord

	for iteration := 1; iteration <= s.maxIterations; iteration++ {
		resp, err := s.llm.ChatWithTools(ctx, llm.AgentRequest{
			Messages: windowOf(history, messageWindow),
			Tools:    s.tools.Definitions(),
		})
		if err != nil {
			return "", fmt.Errorf("scheduler chat iteration %d: %w", iteration, err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		if len(resp.ToolCalls) == 1 {
			tc := resp.ToolCalls[0]
			recentCalls = append(recentCalls, toolCallRecord{name: tc.Name, args: normalizeArgs(tc.Arguments)})
			if len(recentCalls) > doomLoopThreshold {
				recentCalls = recentCalls[1:]
			}
			if len(recentCalls) == doomLoopThreshold && allIdentical(recentCalls) {
				slog.WarnContext(ctx, "scheduler doom loop detected, forcing completion",
					"iteration", iteration, "tool", tc.Name)
				return s.forceSynthesis(ctx, history,
					"You seem to be repeating the same calendar lookup. Respond now with your best answer for the user based on what you've found.")
			}
		} else {
			recentCalls = nil
		}

		history = append(history, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Dispatch sequentially: external calls are serialized within a
		// run, unlike the parallel fan-out used elsewhere in the engine.
		for _, tc := range resp.ToolCalls {
			result, err := s.tools.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				result = fmt.Sprintf("error: %s", err)
			}
			history = append(history, llm.Message{
				Role:       "tool",
				Content:    normalizeToolResult(result),
				ToolCallID: tc.ID,
			})
		}
	}

	slog.InfoContext(ctx, "scheduler hit iteration limit, forcing synthesis", "max_iterations", s.maxIterations)
	return s.forceSynthesis(ctx, history, "Maximum scheduling steps reached. Respond now with your best answer for the user.")
}

func (s *Scheduler) forceSynthesis(ctx context.Context, history []llm.Message, prompt string) (string, error) {
	history = append(history, llm.Message{Role: "user", Content: prompt})
	resp, err := s.llm.ChatWithTools(ctx, llm.AgentRequest{
		Messages: windowOf(history, messageWindow),
		Tools:    nil,
	})
	if err != nil {
		return "", fmt.Errorf("scheduler forced synthesis: %w", err)
	}
	return resp.Content, nil
}

// windowOf returns the last n messages of history, always keeping the
// first (system) message so instructions are never dropped.
func windowOf(history []llm.Message, n int) []llm.Message {
	if len(history) <= n {
		return history
	}
	windowed := make([]llm.Message, 0, n+1)
	windowed = append(windowed, history[0])
	windowed = append(windowed, history[len(history)-n:]...)
	return windowed
}

// normalizeToolResult turns an empty tool result into a non-empty
// human-readable placeholder; the model provider rejects empty
// tool-result content.
func normalizeToolResult(result string) string {
	if strings.TrimSpace(result) == "" {
		return "no results"
	}
	return result
}

func normalizeArgs(args string) string {
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return args
	}
	normalized, err := json.Marshal(v)
	if err != nil {
		return args
	}
	return string(normalized)
}

func allIdentical(calls []toolCallRecord) bool {
	if len(calls) == 0 {
		return false
	}
	first := calls[0]
	for _, c := range calls[1:] {
		if c.name != first.name || c.args != first.args {
			return false
		}
	}
	return true
}
