package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finclose/close-engine/internal/application/dispatcher"
	"github.com/finclose/close-engine/internal/domain/event"
)

type fakeSender struct {
	messages []string
	err      error
}

func (s *fakeSender) SendMessage(_ context.Context, receiveID, content string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, content)
	return nil
}

func TestNotificationService_AnnouncesDecisions(t *testing.T) {
	sender := &fakeSender{}
	svc := NewNotificationService(sender, "chat-1", time.Second, noopLogger{})
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	evt := event.NewEvent(event.TypeBatchApproved, "batch-2024-01", map[string]interface{}{
		"level":      2,
		"approver":   "jane",
		"new_status": "L2_APPROVED",
	})
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(sender.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.messages))
	}
	msg := sender.messages[0]
	for _, want := range []string{"batch-2024-01", "level 2", "jane", "L2_APPROVED"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestNotificationService_DeliversAfterCallerReturns(t *testing.T) {
	sender := &fakeSender{}
	svc := NewNotificationService(sender, "chat-1", time.Second, noopLogger{})
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	// The mutation that raised the event returns immediately and its
	// request context is canceled; the send must still go out.
	ctx, cancel := context.WithCancel(context.Background())
	evt := event.NewEvent(event.TypeStepCompleted, "batch-2024-01", map[string]interface{}{
		"step_id": "reconciliation",
	})
	d.DispatchAsync(ctx, evt)
	cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("sent %d messages, want 1 after the caller's context ended", len(sender.messages))
	}
}

func TestNotificationService_SendFailureDoesNotPropagate(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat unreachable")}
	svc := NewNotificationService(sender, "chat-1", time.Second, noopLogger{})
	d := dispatcher.NewDispatcher()
	svc.Register(d)

	evt := event.NewEvent(event.TypeBatchReopened, "batch-2024-01", map[string]interface{}{
		"approver": "controller",
	})
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Errorf("Dispatch() error = %v, send failures must stay contained", err)
	}
}
