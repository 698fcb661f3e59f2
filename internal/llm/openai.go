package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint (OpenAI,
// OpenRouter and similar gateways).
type OpenAI struct {
	hc     *http.Client
	url    string
	apiKey string
}

// NewOpenAI creates a client for baseURL. A nil hc gets an otelhttp
// instrumented client.
func NewOpenAI(baseURL, apiKey string, hc *http.Client) *OpenAI {
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &OpenAI{
		hc:     hc,
		url:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey: apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// buildMessages shapes the conversation for the model's provider. Only
// openai/ models get a system message; other providers get the system
// prompt prepended to the user turn.
func buildMessages(call Call) []chatMessage {
	var msgs []chatMessage
	userText := call.Prompt
	if call.System != "" {
		if ProviderOf(call.Model) == "openai" {
			msgs = append(msgs, chatMessage{Role: "system", Content: call.System})
		} else if userText == "" {
			userText = call.System
		} else {
			userText = call.System + "\n\n" + userText
		}
	}

	if call.Image == nil {
		return append(msgs, chatMessage{Role: "user", Content: userText})
	}
	var parts []contentPart
	if userText != "" {
		parts = append(parts, contentPart{Type: "text", Text: userText})
	}
	parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(call.Image)}})
	return append(msgs, chatMessage{Role: "user", Content: parts})
}

func dataURL(img *Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Complete implements Provider.
func (c *OpenAI) Complete(ctx context.Context, call Call) (string, error) {
	body := chatRequest{
		Model:       call.Model,
		Messages:    buildMessages(call),
		Temperature: Temperature,
	}
	if call.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: call.Schema.Name, Schema: call.Schema.JSON, Strict: true},
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("openai: %w", ctx.Err())
		}
		return "", &ProviderError{Kind: KindTransport, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &ProviderError{Kind: KindMalformed, Msg: "decode response: " + err.Error()}
	}
	if len(cr.Choices) == 0 {
		return "", &ProviderError{Kind: KindEmpty, Msg: "no choices"}
	}
	return cr.Choices[0].Message.Content, nil
}

func statusError(status int, msg string) *ProviderError {
	switch {
	case status == http.StatusTooManyRequests:
		return &ProviderError{Kind: KindRateLimited, Status: status, Msg: msg}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ProviderError{Kind: KindTimeout, Status: status, Msg: msg}
	}
	return &ProviderError{Kind: KindUpstream, Status: status, Msg: msg}
}
