package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewOpenAIClient(OpenAIConfig{
		ResponsesURL: server.URL,
		APIKey:       "test-key",
		Model:        "test-model",
	})
	return client, server
}

func TestGenerateSuccess(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"a grim tale"}]}]}`))
	})
	defer server.Close()

	result, err := client.Generate(context.Background(), Request{Instruction: "narrate", Input: "the keep"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.OutputText != "a grim tale" {
		t.Fatalf("output = %q", result.OutputText)
	}
}

func TestGenerateTopLevelOutputText(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"output_text":"short form"}`))
	})
	defer server.Close()

	result, err := client.Generate(context.Background(), Request{Input: "x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.OutputText != "short form" {
		t.Fatalf("output = %q", result.OutputText)
	}
}

func TestGenerateHTTPErrorNormalized(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.Generate(context.Background(), Request{Input: "x"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if providerErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", providerErr.StatusCode)
	}
	if !providerErr.Retryable {
		t.Fatal("429 must be surfaced as retryable")
	}
}

func TestGenerateServerErrorRetryable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})
	defer server.Close()

	_, err := client.Generate(context.Background(), Request{Input: "x"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if !providerErr.Retryable {
		t.Fatal("5xx must be surfaced as retryable")
	}
}

func TestGenerateClientErrorNotRetryable(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})
	defer server.Close()

	_, err := client.Generate(context.Background(), Request{Input: "x"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if providerErr.Retryable {
		t.Fatal("4xx must not be marked retryable")
	}
}

func TestGenerateEmptyOutput(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"output":[]}`))
	})
	defer server.Close()

	_, err := client.Generate(context.Background(), Request{Input: "x"})
	if !errors.Is(err, ErrEmptyOutput) {
		t.Fatalf("expected ErrEmptyOutput, got %v", err)
	}
}

func TestGenerateNetworkFailureNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewOpenAIClient(OpenAIConfig{
		ResponsesURL: server.URL,
		APIKey:       "test-key",
		Model:        "test-model",
	})
	_, err := client.Generate(context.Background(), Request{Input: "x"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if !providerErr.Retryable {
		t.Fatal("network failure must be surfaced as retryable")
	}
}

func TestGenerateValidatesInputs(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", Model: "m"})

	if _, err := client.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty input")
	}

	client = NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	if _, err := client.Generate(context.Background(), Request{Input: "x"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
