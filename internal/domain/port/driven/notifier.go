package driven

import (
	"context"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// Notifier alerts a human about queue events. Implementations must not block
// the caller for long; failures are reported but never affect stored state.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}
