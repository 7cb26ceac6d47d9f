// Package interpreter adapts the external natural-language change
// interpreter. It turns free text like "make the train head 1 meter longer"
// into a structured map of parameter changes.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"train-design-backend/internal/design"
)

// ErrInterpretation marks failures of the external text-understanding
// service: unreachable, timed out, or returned content that is not a JSON
// object. Submission is rejected before any ledger write when this occurs.
var ErrInterpretation = errors.New("change interpretation failed")

const systemPrompt = `You are a parameter-parsing assistant for high-speed train head design.
The user describes a change to the design in free text; convert it into a structured parameter change.

Supported parameters:
- trainHeadLength: train head length (mm)
- trainHeadHeight: train head height (mm)
- cabinHeight: cab height (mm)
- streamlineCurvature: streamline curvature (degrees)
- windowWidth: window width (mm)
- windowHeight: window height (mm)
- chassisHeight: chassis height (mm)
- headCarTotalLength: head car total length (mm)
- maxWidth: maximum width (mm)
- maxHeight: maximum height (mm)

Respond with a JSON object containing only the parameters to change. Convert meters to millimeters.
For a relative change, use the string form "<parameter> + <amount>" or "<parameter> - <amount>".

Examples:
Input: "increase the train head length to 11 meters"
Output: {"trainHeadLength": 11000}

Input: "make the train head 1000mm longer"
Output: {"trainHeadLength": "trainHeadLength + 1000"}

Input: "window width 1.5m, height 1m"
Output: {"windowWidth": 1500, "windowHeight": 1000}

Return only the JSON object, with no surrounding text.`

// Client calls a chat-completion model through the OpenAI-compatible API
// surface (DashScope compatible mode in production).
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Interpret converts user input into tagged change values. Shape errors in
// individual values surface as *design.ResolutionError; service failures
// wrap ErrInterpretation.
func (c *Client) Interpret(ctx context.Context, userInput string) (map[string]design.ChangeValue, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userInput},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", ErrInterpretation)
	}

	raw, ok := extractJSONObject(resp.Choices[0].Message.Content)
	if !ok {
		return nil, fmt.Errorf("%w: response contains no JSON object", ErrInterpretation)
	}

	changes, err := design.DecodeChanges([]byte(raw))
	if err != nil {
		var resErr *design.ResolutionError
		if errors.As(err, &resErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}
	return changes, nil
}

// extractJSONObject returns the first outermost {...} block in the model
// output. Models occasionally wrap the object in prose or code fences
// despite the instructions.
func extractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return content[start : end+1], true
}
