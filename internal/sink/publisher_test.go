package sink

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/faulterr"
	"github.com/enterprise/fraud-investigator/internal/models"
)

func TestPublishSucceedsOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New(configs.SinkConfig{URL: server.URL, Timeout: 2 * time.Second, MaxRetries: 2})

	err := p.Publish(t.Context(), models.VerdictPayload{CaseID: "case-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestPublishReturnsSinkUnavailableAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := New(configs.SinkConfig{URL: server.URL, Timeout: 2 * time.Second, MaxRetries: 1})

	err := p.Publish(t.Context(), models.VerdictPayload{CaseID: "case-2"})
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if !faulterr.Is(err, faulterr.KindSinkUnavailable) {
		t.Fatalf("expected sink_unavailable, got %v", err)
	}
}
