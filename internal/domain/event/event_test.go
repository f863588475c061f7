package event

import (
	"testing"
	"time"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{"batch created", TypeBatchCreated, "batch.created"},
		{"batch approved", TypeBatchApproved, "batch.approved"},
		{"batch rejected", TypeBatchRejected, "batch.rejected"},
		{"batch reopened", TypeBatchReopened, "batch.reopened"},
		{"step completed", TypeStepCompleted, "workflow.step_completed"},
		{"comment added", TypeCommentAdded, "batch.comment_added"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsValid(t *testing.T) {
	for _, valid := range []Type{TypeBatchCreated, TypeBatchApproved, TypeBatchRejected, TypeBatchReopened, TypeStepCompleted, TypeCommentAdded} {
		if !valid.IsValid() {
			t.Errorf("Type(%s).IsValid() = false, want true", valid)
		}
	}
	for _, invalid := range []Type{"", "batch.unknown", "created"} {
		if invalid.IsValid() {
			t.Errorf("Type(%s).IsValid() = true, want false", invalid)
		}
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeBatchApproved, "batch-2024-01-001", map[string]interface{}{
		"level":    2,
		"approver": "jane.doe",
	})
	after := time.Now()

	if evt.ID == "" {
		t.Error("NewEvent() should assign an ID")
	}
	if evt.CorrelationID == "" {
		t.Error("NewEvent() should assign a correlation ID")
	}
	if evt.BatchID != "batch-2024-01-001" {
		t.Errorf("BatchID = %v, want batch-2024-01-001", evt.BatchID)
	}
	if evt.Timestamp.Before(before) || evt.Timestamp.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", evt.Timestamp, before, after)
	}
	if evt.GetPayloadInt("level") != 2 {
		t.Errorf("GetPayloadInt(level) = %d, want 2", evt.GetPayloadInt("level"))
	}
	if evt.GetPayloadString("approver") != "jane.doe" {
		t.Errorf("GetPayloadString(approver) = %q, want jane.doe", evt.GetPayloadString("approver"))
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(TypeBatchCreated, "batch-1", nil)
	b := NewEvent(TypeBatchCreated, "batch-1", nil)
	if a.ID == b.ID {
		t.Error("two events should not share an ID")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	parent := NewEvent(TypeBatchRejected, "batch-1", nil)
	child := NewEventWithCorrelation(TypeBatchReopened, "batch-1", nil, parent.CorrelationID)

	if child.CorrelationID != parent.CorrelationID {
		t.Errorf("CorrelationID = %v, want %v", child.CorrelationID, parent.CorrelationID)
	}
	if child.ID == parent.ID {
		t.Error("correlated events should still have distinct IDs")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	evt := NewEvent(TypeBatchApproved, "batch-1", map[string]interface{}{"level": 1})
	updated := evt.WithPayload("new_status", "L1_APPROVED")

	if updated.GetPayloadString("new_status") != "L1_APPROVED" {
		t.Error("WithPayload() should add the new key")
	}
	if updated.GetPayloadInt("level") != 1 {
		t.Error("WithPayload() should preserve existing keys")
	}
	// Original must be untouched.
	if evt.GetPayloadString("new_status") != "" {
		t.Error("WithPayload() must not mutate the original event")
	}
}

func TestEvent_PayloadAccessors_MissingKeys(t *testing.T) {
	evt := NewEvent(TypeBatchCreated, "batch-1", nil)

	if evt.GetPayloadString("missing") != "" {
		t.Error("GetPayloadString(missing) should return empty string")
	}
	if evt.GetPayloadInt("missing") != 0 {
		t.Error("GetPayloadInt(missing) should return 0")
	}
	if evt.GetPayloadBool("missing") {
		t.Error("GetPayloadBool(missing) should return false")
	}
}

func TestEvent_GetPayloadInt_Conversions(t *testing.T) {
	evt := NewEvent(TypeBatchCreated, "batch-1", map[string]interface{}{
		"as_int":     3,
		"as_int64":   int64(4),
		"as_float64": 5.0,
	})

	if evt.GetPayloadInt("as_int") != 3 {
		t.Error("int payload should convert")
	}
	if evt.GetPayloadInt("as_int64") != 4 {
		t.Error("int64 payload should convert")
	}
	if evt.GetPayloadInt("as_float64") != 5 {
		t.Error("float64 payload should convert")
	}
}
