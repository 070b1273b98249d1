package faulterr

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := StorageUnavailable("historystore.velocity", errors.New("conn refused"))
	if !Is(err, KindStorageUnavailable) {
		t.Fatalf("expected storage_unavailable kind")
	}
	if Is(err, KindStorageTimeout) {
		t.Fatalf("did not expect storage_timeout kind")
	}
}

func TestIsRejectsPlainError(t *testing.T) {
	if Is(errors.New("plain"), KindInternalFault) {
		t.Fatalf("plain error should never match a faulterr kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := InternalFault("cascade.orchestrator", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to unwrap to cause")
	}
}
