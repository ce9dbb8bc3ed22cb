// Package diagnose turns a conversation about one vehicle into an
// automotive diagnosis using an LLM provider.
package diagnose

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/llm"
)

const (
	// UnavailableReply is returned when no provider is configured.
	UnavailableReply = "I'm having technical difficulties. Please try again later."
	// ErrorReply is returned when the provider call fails.
	ErrorReply = "I encountered a technical error. Please describe your vehicle issue."

	vehicleContextMarker = "Current Vehicle:"
	helpPrompt           = "How can I help with your vehicle today?"
)

// SystemPrompt is the assistant persona.
const SystemPrompt = "You are AutoGenius, an expert automotive diagnostic assistant. " +
	"Your ONLY purpose is to help diagnose and repair vehicles. " +
	"Rules you MUST follow:\n" +
	"1. Always remember and reference the specific vehicle being discussed\n" +
	"2. Only respond to automotive-related questions\n" +
	"3. Reject all other topics with: \"I specialize in automotive diagnostics only\"\n" +
	"4. Be technical but clear in explanations\n" +
	"5. Provide concise, numbered steps when appropriate\n" +
	"6. Never use special formatting or characters (e.g., **, *, etc.)\n" +
	"7. Use numbered lists (e.g., 1., 2., etc.) for bullet points\n" +
	"8. When asked about the vehicle, always respond with its full details\n" +
	"9. Only recommend products when the user asks for recommendations\n" +
	"10. If someone asks who created you, answer with the creator statement\n"

// CreatorReply answers questions about who built the assistant.
const CreatorReply = "I am AutoGenius, an expert automotive diagnostic assistant built by Zia Ul Din, " +
	"a data analyst and AI developer. " + helpPrompt

var creatorKeywords = []string{"zia", "who are you", "who built you", "who created you", "who made you"}

var vehicleQueries = []string{
	"what car", "which vehicle", "my car", "what vehicle",
	"what am i driving", "what's my car",
}

// Options tune the completion call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Diagnoser produces assistant replies.
type Diagnoser struct {
	provider llm.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates a Diagnoser. provider may be nil, in which case every call
// returns UnavailableReply.
func New(provider llm.Provider, opts Options, logger *zap.Logger) *Diagnoser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}
	return &Diagnoser{provider: provider, opts: opts, logger: logger}
}

// Diagnose answers the last user message in history for the given vehicle.
// It never fails: provider errors are logged and turned into ErrorReply.
func (d *Diagnoser) Diagnose(ctx context.Context, vehicle catalog.Vehicle, history []llm.Message) string {
	if d.provider == nil {
		return UnavailableReply
	}

	lastUser := lastUserMessage(history)
	if mentionsCreator(lastUser) {
		return CreatorReply
	}

	vehicleInfo := vehicle.String()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleSystem, Content: vehicleContextMarker + " " + vehicleInfo + "\nAll responses must be specific to this vehicle unless otherwise noted."},
	}
	for _, m := range history {
		if m.Role == llm.RoleSystem && strings.Contains(m.Content, vehicleContextMarker) {
			continue
		}
		messages = append(messages, m)
	}

	resp, err := d.provider.Complete(ctx, llm.CompletionRequest{
		Model:       d.opts.Model,
		Messages:    messages,
		MaxTokens:   d.opts.MaxTokens,
		Temperature: d.opts.Temperature,
		TopP:        d.opts.TopP,
	})
	if err != nil {
		d.logger.Error("diagnosis failed",
			zap.String("provider", d.provider.Name()),
			zap.String("vehicle", vehicleInfo),
			zap.Error(err))
		return ErrorReply
	}
	d.logger.Debug("diagnosis complete",
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens))

	reply := strings.ReplaceAll(resp.Content, "**", "")

	if isVehicleQuery(lastUser) {
		out := "You have a " + vehicleInfo + ". "
		if !strings.Contains(strings.ToLower(reply), "how can i help") {
			out += helpPrompt
		}
		return out
	}
	return reply
}

func lastUserMessage(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func mentionsCreator(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range creatorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isVehicleQuery(msg string) bool {
	lower := strings.ToLower(msg)
	for _, q := range vehicleQueries {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
