package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(apiKey string, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := NewClient(apiKey, "test-model", 0.7, 1024, &RateLimiter{minInterval: time.Millisecond})
	client.endpoint = server.URL + "/"

	return client, server
}

func TestClient_GenerateContent_NotConfigured(t *testing.T) {
	client, server := testClient("", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("No network call should be made without an API key")
	})
	defer server.Close()

	_, err := client.GenerateContent(context.Background(), "prompt")

	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestClient_GenerateContent_Success(t *testing.T) {
	var gotPath string
	var gotRequest generateRequest

	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery

		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Generated text"}]}}]}`))
	})
	defer server.Close()

	text, err := client.GenerateContent(context.Background(), "Summarize this")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if text != "Generated text" {
		t.Errorf("Expected candidate text, got %q", text)
	}
	if gotPath != "/test-model:generateContent?key=secret-key" {
		t.Errorf("Unexpected request path: %s", gotPath)
	}
	if len(gotRequest.Contents) != 1 || len(gotRequest.Contents[0].Parts) != 1 {
		t.Fatalf("Expected a single content part, got %+v", gotRequest.Contents)
	}
	if gotRequest.Contents[0].Parts[0].Text != "Summarize this" {
		t.Errorf("Expected prompt in request body, got %q", gotRequest.Contents[0].Parts[0].Text)
	}
	if gotRequest.GenerationConfig.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", gotRequest.GenerationConfig.Temperature)
	}
	if gotRequest.GenerationConfig.TopK != 40 || gotRequest.GenerationConfig.TopP != 0.95 {
		t.Errorf("Expected fixed sampling parameters, got topK=%d topP=%v",
			gotRequest.GenerationConfig.TopK, gotRequest.GenerationConfig.TopP)
	}
	if gotRequest.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("Expected maxOutputTokens 1024, got %d", gotRequest.GenerationConfig.MaxOutputTokens)
	}
}

func TestClient_GenerateContent_APIErrorWithMessage(t *testing.T) {
	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded"}}`))
	})
	defer server.Close()

	_, err := client.GenerateContent(context.Background(), "prompt")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", apiErr.Status)
	}
	if apiErr.Message != "Quota exceeded" {
		t.Errorf("Expected provider message, got %q", apiErr.Message)
	}
}

func TestClient_GenerateContent_ErrorEnvelopeInOKResponse(t *testing.T) {
	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"message":"Invalid model"}}`))
	})
	defer server.Close()

	_, err := client.GenerateContent(context.Background(), "prompt")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError for error envelope, got %v", err)
	}
	if apiErr.Message != "Invalid model" {
		t.Errorf("Expected envelope message, got %q", apiErr.Message)
	}
}

func TestClient_GenerateContent_EmptyResponse(t *testing.T) {
	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})
	defer server.Close()

	_, err := client.GenerateContent(context.Background(), "prompt")

	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for missing candidates, got %v", err)
	}
}

func TestClient_GenerateContent_EmptyText(t *testing.T) {
	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`))
	})
	defer server.Close()

	_, err := client.GenerateContent(context.Background(), "prompt")

	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for empty text, got %v", err)
	}
}

func TestClient_TestConnection(t *testing.T) {
	client, server := testClient("secret-key", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]}`))
	})
	defer server.Close()

	if err := client.TestConnection(context.Background()); err != nil {
		t.Errorf("Expected test connection to succeed, got %v", err)
	}
}
