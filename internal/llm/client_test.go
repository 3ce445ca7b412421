package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != apiVersion {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		var rq messagesRQ
		if err := json.NewDecoder(r.Body).Decode(&rq); err != nil {
			t.Errorf("decode: %v", err)
		}
		if rq.Model != "test-model" || rq.MaxTokens != 123 || len(rq.Messages) != 1 || rq.Messages[0].Content != "hi" {
			t.Errorf("unexpected request: %+v", rq)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"ok\":"},{"type":"text","text":"true}"}],"stop_reason":"end_turn"}`)
	}))
	defer server.Close()

	c, err := New(server.URL, "key", []restclient.Option{restclient.WithHTTPClient(server.Client())}, WithModel("test-model"), WithMaxTokens(123))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.GenerateText(context.Background(), "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("reply = %q", got)
	}

	bad, _ := New(server.URL, "wrong", []restclient.Option{restclient.WithHTTPClient(server.Client())})
	if _, err := bad.GenerateText(context.Background(), "hi"); !restclient.IsAuthFailure(err) {
		t.Errorf("expected IsAuthFailure, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"a":1}`, `{"a":1}`, false},
		{"Here you go:\n```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, false},
		{"no json here", "", true},
	}
	for _, tt := range tests {
		got, err := ExtractJSON(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, %v", tt.in, got, err)
		}
	}
}
