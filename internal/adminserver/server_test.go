package adminserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/enterprise/fraud-investigator/internal/models"
	"github.com/enterprise/fraud-investigator/internal/worker"
)

type fakeCaseSource struct {
	cases    []models.ProcessedCase
	patterns []models.DiscoveredPattern
}

func (f fakeCaseSource) Recent(n int) []models.ProcessedCase    { return f.cases }
func (f fakeCaseSource) Patterns() []models.DiscoveredPattern { return f.patterns }

type fakePool struct{}

func (fakePool) AggregatedSnapshot() worker.Snapshot {
	return worker.Snapshot{Processed: 10, Failed: 1}
}

func TestHealthEndpointReturns200(t *testing.T) {
	srv := New("0", fakeCaseSource{}, fakePool{}, "test")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRecentCasesEndpointReturnsCases(t *testing.T) {
	src := fakeCaseSource{cases: []models.ProcessedCase{{CaseID: "c1"}, {CaseID: "c2"}}}
	srv := New("0", src, fakePool{}, "test")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cases/recent", nil)
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Cases []models.ProcessedCase `json:"cases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Cases) != 2 || body.Cases[0].CaseID != "c1" || body.Cases[1].CaseID != "c2" {
		t.Fatalf("expected cases c1 and c2, got %+v", body.Cases)
	}
}

func TestPatternsEndpointReturns200(t *testing.T) {
	srv := New("0", fakeCaseSource{}, fakePool{}, "test")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/patterns", nil)
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
