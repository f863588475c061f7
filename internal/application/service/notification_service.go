package service

import (
	"context"
	"fmt"
	"time"

	"github.com/finclose/close-engine/internal/application/dispatcher"
	"github.com/finclose/close-engine/internal/application/port"
	"github.com/finclose/close-engine/internal/domain/event"
)

// NotificationService forwards close-process events to the finance ops chat.
// Delivery is best effort: a send failure is logged and never propagates back
// into the mutation that raised the event.
type NotificationService interface {
	// Register subscribes the service to the event types it announces
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	sender  port.LarkMessageSender
	chatID  string
	timeout time.Duration
	logger  Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(sender port.LarkMessageSender, chatID string, timeout time.Duration, logger Logger) NotificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &notificationServiceImpl{
		sender:  sender,
		chatID:  chatID,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeBatchApproved, "notify-approved", s.handleDecision)
	d.SubscribeNamed(event.TypeBatchRejected, "notify-rejected", s.handleDecision)
	d.SubscribeNamed(event.TypeBatchReopened, "notify-reopened", s.handleReopened)
	d.SubscribeNamed(event.TypeStepCompleted, "notify-step-completed", s.handleStepCompleted)
}

func (s *notificationServiceImpl) handleDecision(ctx context.Context, evt *event.Event) error {
	var text string
	if evt.Type == event.TypeBatchApproved {
		text = fmt.Sprintf("Batch %s approved at level %d by %s (now %s)",
			evt.BatchID, evt.GetPayloadInt("level"), evt.GetPayloadString("approver"), evt.GetPayloadString("new_status"))
	} else {
		text = fmt.Sprintf("Batch %s rejected at level %d by %s",
			evt.BatchID, evt.GetPayloadInt("level"), evt.GetPayloadString("approver"))
	}
	s.send(ctx, evt, text)
	return nil
}

func (s *notificationServiceImpl) handleReopened(ctx context.Context, evt *event.Event) error {
	s.send(ctx, evt, fmt.Sprintf("Batch %s was reopened after final approval by %s; the approval chain restarts at level 1",
		evt.BatchID, evt.GetPayloadString("approver")))
	return nil
}

func (s *notificationServiceImpl) handleStepCompleted(ctx context.Context, evt *event.Event) error {
	s.send(ctx, evt, fmt.Sprintf("Workflow step %s completed for batch %s",
		evt.GetPayloadString("step_id"), evt.BatchID))
	return nil
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sender.SendMessage(sendCtx, s.chatID, text); err != nil {
		s.logger.Error("Failed to send notification",
			"error", err,
			"event_type", evt.Type,
			"batch_id", evt.BatchID,
		)
		return
	}
	s.logger.Info("Notification sent", "event_type", evt.Type, "batch_id", evt.BatchID)
}
