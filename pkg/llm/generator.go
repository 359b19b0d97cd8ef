package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/courserag/internal/models"
	"github.com/xhad/courserag/pkg/tools"
)

const defaultSystemPrompt = `You are an assistant for questions about course materials. You can call two tools:
- search_course_content finds passages in the course materials. Use it for questions about specific course content or detailed educational material.
- get_course_outline returns a course's title, link, instructor and numbered lesson list. Use it for questions about a course's structure or lessons.

Search at most once per question, and only when the question is about the course materials. Answer general knowledge questions directly without tools. If a tool finds nothing, say so plainly.

Answers must be brief, accurate and educational. Give the answer directly: do not describe your reasoning, the tools you used or the search results themselves. Include examples when they help.`

const userPromptFormat = "Answer this question about course materials: %s"

// ToolRunner offers tools to the model and executes its calls.
type ToolRunner interface {
	Definitions() []tools.Definition
	Execute(ctx context.Context, name, arguments string) (string, error)
}

type GeneratorConfig struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	// MaxToolRounds bounds how many times tool results are sent back to the
	// model. The completion after the last round is made without tools.
	MaxToolRounds int
	Logger        *slog.Logger
}

// Generator answers a query with a chat model that may call tools.
type Generator struct {
	config GeneratorConfig
	model  llms.Model
	logger *slog.Logger
}

func NewGenerator(model llms.Model, config GeneratorConfig) *Generator {
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 800
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		config: config,
		model:  model,
		logger: logger,
	}
}

// Request is one generation. Tools may be nil. OnToken, when set, receives
// the final answer as it is produced.
type Request struct {
	Query   string
	History []models.Turn
	Tools   ToolRunner
	OnToken func(chunk string)
}

func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+4)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, g.config.SystemPrompt))
	for _, turn := range req.History {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(userPromptFormat, req.Query)))

	var offered []llms.Tool
	if req.Tools != nil {
		offered = toLLMTools(req.Tools.Definitions())
	}

	for round := 0; ; round++ {
		withTools := len(offered) > 0 && round < g.config.MaxToolRounds

		opts := []llms.CallOption{
			llms.WithMaxTokens(g.config.MaxTokens),
			llms.WithTemperature(g.config.Temperature),
		}
		if withTools {
			opts = append(opts, llms.WithTools(offered))
		} else if req.OnToken != nil {
			opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				req.OnToken(string(chunk))
				return nil
			}))
		}

		resp, err := g.model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("generate content: empty response")
		}
		choice := resp.Choices[0]

		if !withTools || len(choice.ToolCalls) == 0 {
			if withTools && req.OnToken != nil {
				req.OnToken(choice.Content)
			}
			return choice.Content, nil
		}

		messages, err = g.runTools(ctx, req.Tools, messages, choice)
		if err != nil {
			return "", err
		}
	}
}

// runTools appends the model's tool calls and one tool message per call to
// messages. Unknown tools and bad arguments are reported to the model; any
// other failure aborts the generation.
func (g *Generator) runTools(ctx context.Context, runner ToolRunner, messages []llms.MessageContent, choice *llms.ContentChoice) ([]llms.MessageContent, error) {
	parts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if choice.Content != "" {
		parts = append(parts, llms.TextContent{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		parts = append(parts, call)
	}
	messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})

	for _, call := range choice.ToolCalls {
		if call.FunctionCall == nil {
			continue
		}
		name := call.FunctionCall.Name

		result, err := runner.Execute(ctx, name, call.FunctionCall.Arguments)
		if err != nil {
			var unknown *tools.UnknownToolError
			if !errors.As(err, &unknown) && !errors.Is(err, tools.ErrInvalidArguments) {
				return nil, fmt.Errorf("tool %s: %w", name, err)
			}
			g.logger.Warn("tool call failed", "tool", name, "error", err)
			result = fmt.Sprintf("Tool execution failed: %v", err)
		} else {
			g.logger.Debug("tool call", "tool", name, "arguments", call.FunctionCall.Arguments)
		}

		messages = append(messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    result,
			}},
		})
	}
	return messages, nil
}

func toLLMTools(defs []tools.Definition) []llms.Tool {
	out := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
