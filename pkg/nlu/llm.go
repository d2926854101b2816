package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"voicecmd/pkg/command"
)

// LLMConfig configures the chat-completion NLU backend.
type LLMConfig struct {
	// Model name sent to the chat completions endpoint.
	Model string

	// Timeout per request. Defaults to 30s.
	Timeout time.Duration
}

// LLMEngine asks an OpenAI-compatible chat model to classify the
// transcript against the registered schemas. The system prompt is
// generated from the schemas and demands a strict JSON reply; chatty
// models are salvaged by slicing the outermost braces.
type LLMEngine struct {
	client openai.Client
	cfg    LLMConfig
}

func NewLLMEngine(client openai.Client, cfg LLMConfig) *LLMEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LLMEngine{client: client, cfg: cfg}
}

func (e *LLMEngine) Init() error {
	if e.cfg.Model == "" {
		return errors.New("no model configured")
	}
	return nil
}

func (e *LLMEngine) Name() string { return "llm" }

func (e *LLMEngine) Process(transcript string, schemas []command.Descriptor) Result {
	if transcript == "" {
		return Result{ErrorMessage: "empty transcript"}
	}
	if len(schemas) == 0 {
		return Result{ErrorMessage: "no command schemas provided"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(buildSystemPrompt(schemas)),
			openai.UserMessage(transcript),
		},
		Model: openai.ChatModel(e.cfg.Model),
	})
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("chat completion: %v", err)}
	}

	if len(resp.Choices) == 0 {
		return Result{ErrorMessage: "no choices in response"}
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Result{ErrorMessage: "empty message content"}
	}

	log.Debug("llm nlu reply", "content", content)

	return parseReply(content)
}

// buildSystemPrompt renders the command schemas as a numbered catalog
// the model picks from.
func buildSystemPrompt(schemas []command.Descriptor) string {
	var b strings.Builder

	b.WriteString("You are a voice command classifier. Given a transcript, identify the command and extract parameters.\n\n")
	b.WriteString("Available commands:\n")

	for i, schema := range schemas {
		fmt.Fprintf(&b, "%d. %q", i+1, schema.Name)
		if schema.Description != "" {
			b.WriteString(" - " + schema.Description)
		}
		b.WriteString("\n")

		if len(schema.Parameters) > 0 {
			b.WriteString("   Parameters:\n")
			for _, param := range schema.Parameters {
				fmt.Fprintf(&b, "   - %s (%s", param.Name, param.Type)
				if param.Required {
					b.WriteString(", required")
				} else {
					b.WriteString(", optional")
					if param.DefaultValue != "" {
						b.WriteString(", default=" + param.DefaultValue)
					}
				}
				b.WriteString(")")

				if param.Description != "" {
					b.WriteString(": " + param.Description)
				}

				if param.MinValue != nil || param.MaxValue != nil {
					b.WriteString(" [")
					if param.MinValue != nil {
						fmt.Fprintf(&b, "min=%g", *param.MinValue)
					}
					if param.MinValue != nil && param.MaxValue != nil {
						b.WriteString(", ")
					}
					if param.MaxValue != nil {
						fmt.Fprintf(&b, "max=%g", *param.MaxValue)
					}
					b.WriteString("]")
				}

				if param.Type == command.TypeEnum && len(param.EnumValues) > 0 {
					b.WriteString(" [values: " + strings.Join(param.EnumValues, ", ") + "]")
				}

				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{"command": "command_name", "confidence": 0.0-1.0, "params": {"key": "value"}}`)
	b.WriteString("\n\nIf no command matches, respond:\n")
	b.WriteString(`{"command": "", "confidence": 0.0, "params": {}}`)
	b.WriteString("\n")

	return b.String()
}

func parseReply(content string) Result {
	// The model may wrap the JSON in prose or a code fence; keep what
	// sits between the outermost braces.
	jsonStr := content
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		jsonStr = content[start : end+1]
	}

	var reply struct {
		Command    string            `json:"command"`
		Confidence float32           `json:"confidence"`
		Params     map[string]string `json:"params"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return Result{ErrorMessage: fmt.Sprintf("unmarshal llm reply: %v (raw: %s)", err, content)}
	}

	if reply.Command == "" {
		return Result{ErrorMessage: "no matching command"}
	}

	params := reply.Params
	if params == nil {
		params = make(map[string]string)
	}

	return Result{
		Success:     true,
		CommandName: reply.Command,
		Confidence:  reply.Confidence,
		Params:      params,
	}
}
