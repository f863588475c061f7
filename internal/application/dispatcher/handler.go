package dispatcher

import (
	"context"

	"github.com/finclose/close-engine/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error
