// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Call records one GenerateContent invocation.
type Call struct {
	Messages []llms.MessageContent
	Options  llms.CallOptions
}

// ScriptedModel replays queued responses in order. When the queue is empty,
// Respond is consulted if set; otherwise GenerateContent fails.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	calls     []Call

	Respond func(call Call) (*llms.ContentResponse, error)
}

func NewScriptedModel(responses ...*llms.ContentResponse) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

func (m *ScriptedModel) Push(responses ...*llms.ContentResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

func (m *ScriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	call := Call{
		Messages: append([]llms.MessageContent(nil), messages...),
		Options:  opts,
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	var next *llms.ContentResponse
	if len(m.responses) > 0 {
		next = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	if next == nil {
		if m.Respond == nil {
			return nil, errors.New("llmtest: no scripted response left")
		}
		var err error
		next, err = m.Respond(call)
		if err != nil {
			return nil, err
		}
	}

	if opts.StreamingFunc != nil && len(next.Choices) > 0 {
		if err := opts.StreamingFunc(ctx, []byte(next.Choices[0].Content)); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (m *ScriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Calls returns every call made so far.
func (m *ScriptedModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Text is a final answer without tool calls.
func Text(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

// ToolCall is a response requesting one function call.
func ToolCall(id, name, arguments string) *llms.ContentResponse {
	return ToolCalls(Function(id, name, arguments))
}

// ToolCalls is a response requesting several function calls, in order.
func ToolCalls(calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{ToolCalls: calls}}}
}

func Function(id, name, arguments string) llms.ToolCall {
	return llms.ToolCall{
		ID:   id,
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// ToolResults returns the tool responses contained in messages, in order.
func ToolResults(messages []llms.MessageContent) []llms.ToolCallResponse {
	var out []llms.ToolCallResponse
	for _, m := range messages {
		if m.Role != llms.ChatMessageTypeTool {
			continue
		}
		for _, p := range m.Parts {
			if r, ok := p.(llms.ToolCallResponse); ok {
				out = append(out, r)
			}
		}
	}
	return out
}
