package events

import (
	"context"

	"github.com/fieldops/geosync/internal/logger"
)

// LogHandler logs received events and takes no further action. Used by
// the listen command to verify event flow end to end.
type LogHandler struct {
	log logger.Logger
}

// NewLogHandler creates a new logging handler.
func NewLogHandler(log logger.Logger) *LogHandler {
	return &LogHandler{log: log}
}

// HandleEvent logs the event and returns nil.
func (h *LogHandler) HandleEvent(ctx context.Context, event LocationEvent) error {
	if h.log != nil {
		h.log.Info("Location event received",
			logger.String("event_type", string(event.EventType)),
			logger.Int("location_id", event.LocationID),
			logger.String("event_id", event.EventID.String()),
		)
	}
	return nil
}
