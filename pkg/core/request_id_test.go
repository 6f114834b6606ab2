package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	ctxWithID := WithRequestID(ctx, requestID)

	retrievedID := GetRequestID(ctxWithID)
	if retrievedID != requestID {
		t.Errorf("GetRequestID() = %v, want %v", retrievedID, requestID)
	}
}

func TestGetRequestID_NoID(t *testing.T) {
	ctx := context.Background()

	id := GetRequestID(ctx)
	if id != "" {
		t.Errorf("GetRequestID() = %v, want empty string", id)
	}
}

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	if id1 == "" {
		t.Error("GenerateRequestID() returned empty string")
	}

	if id2 == "" {
		t.Error("GenerateRequestID() returned empty string")
	}

	if id1 == id2 {
		t.Error("GenerateRequestID() should generate unique IDs")
	}
}

func TestGenerateRequestID_IsUUID(t *testing.T) {
	id := GenerateRequestID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("GenerateRequestID() = %q is not a UUID: %v", id, err)
	}
}

func TestGetRequestID_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	if id := GetRequestID(nil); id != "" {
		t.Errorf("GetRequestID(nil) = %v, want empty string", id)
	}
}
