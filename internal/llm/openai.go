package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig configures the OpenAI responses endpoint and HTTP behavior.
type OpenAIConfig struct {
	ResponsesURL string
	APIKey       string
	Model        string
	HTTPClient   *http.Client
}

type openAIClient struct {
	cfg    OpenAIConfig
	tracer trace.Tracer
}

// NewOpenAIClient builds a client against the OpenAI responses endpoint.
func NewOpenAIClient(cfg OpenAIConfig) Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.ResponsesURL) == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	return &openAIClient{cfg: cfg, tracer: otel.Tracer("canonforge.llm")}
}

func (c *openAIClient) Generate(ctx context.Context, request Request) (Result, error) {
	instruction := strings.TrimSpace(request.Instruction)
	input := strings.TrimSpace(request.Input)
	model := strings.TrimSpace(request.Model)
	if model == "" {
		model = strings.TrimSpace(c.cfg.Model)
	}
	if model == "" {
		return Result{}, fmt.Errorf("model is required")
	}
	if input == "" {
		return Result{}, fmt.Errorf("input is required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Result{}, fmt.Errorf("api key is required")
	}

	ctx, span := c.tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(attribute.String("llm.model", model)))
	defer span.End()

	body := map[string]any{
		"model": model,
		"input": input,
	}
	if instruction != "" {
		body["instructions"] = instruction
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return Result{}, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material is sent only as an Authorization header and is
	// never echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.cfg.APIKey))

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return Result{}, &ProviderError{Message: "generate request failed", Retryable: true, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
		if readErr != nil {
			return Result{}, fmt.Errorf("read generate error body: %w", readErr)
		}
		return Result{}, &ProviderError{
			StatusCode: res.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
			Retryable:  res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500,
		}
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Result{}, &ProviderError{Message: "decode generate response", Err: err}
	}

	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		var parts []string
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if content.Type == "output_text" && strings.TrimSpace(content.Text) != "" {
					parts = append(parts, content.Text)
				}
			}
		}
		outputText = strings.TrimSpace(strings.Join(parts, "\n"))
	}
	if outputText == "" {
		return Result{}, ErrEmptyOutput
	}
	return Result{OutputText: outputText}, nil
}
