package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"camfleet/internal/events"
)

// registerEventRoutes wires the live event stream. Clients get every fleet
// lifecycle event as a server-sent event until they disconnect.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "stream-events",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event stream",
		Description: "Fleet lifecycle events as server-sent events",
		Tags:        []string{"events"},
		Security:    withAuth(),
	}, map[string]any{
		"process-started":     events.ProcessStartedEvent{},
		"process-exited":      events.ProcessExitedEvent{},
		"kill-failed":         events.KillFailedEvent{},
		"discovery-completed": events.DiscoveryCompletedEvent{},
		"recording-started":   events.RecordingStartedEvent{},
		"recording-stopped":   events.RecordingStoppedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		ch := make(chan any, 16)
		unsubs := []func(){
			events.SubscribeToChannel[events.ProcessStartedEvent](s.bus, ch),
			events.SubscribeToChannel[events.ProcessExitedEvent](s.bus, ch),
			events.SubscribeToChannel[events.KillFailedEvent](s.bus, ch),
			events.SubscribeToChannel[events.DiscoveryCompletedEvent](s.bus, ch),
			events.SubscribeToChannel[events.RecordingStartedEvent](s.bus, ch),
			events.SubscribeToChannel[events.RecordingStoppedEvent](s.bus, ch),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
