package audit

import (
	"testing"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/models"
)

func TestDisabledProducerPublishIsNoop(t *testing.T) {
	p, err := New(configs.KafkaConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error constructing a disabled producer: %v", err)
	}

	// Must not panic or block when auditing is disabled.
	p.Publish(models.ProcessedCase{CaseID: "c1"})

	if err := p.Close(); err != nil {
		t.Fatalf("expected Close on a disabled producer to be a no-op, got %v", err)
	}
}
