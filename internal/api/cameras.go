package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"camfleet/internal/api/models"
)

// registerCameraRoutes wires the fleet lifecycle and broadcast operations.
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Fleet status",
		Description: "Live process summaries plus best-effort storage data",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.service.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-cameras",
		Method:      http.MethodPost,
		Path:        "/api/cameras/restart",
		Summary:     "Restart fleet",
		Description: "Kill every camera process and start the fleet again",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
	}, func(ctx context.Context, _ *struct{}) (*models.RestartResponse, error) {
		if err := s.supervisor.Restart(ctx); err != nil {
			return nil, huma.Error500InternalServerError("Restart failed", err)
		}
		return &models.RestartResponse{
			Body: models.RestartData{
				Status:  "restarted",
				Started: s.supervisor.Count(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-camera-names",
		Method:      http.MethodPut,
		Path:        "/api/cameras/names",
		Summary:     "Set camera names",
		Description: "Replace the pid-to-label mapping used in recording stems",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.SetNamesRequest) (*models.CommandResponse, error) {
		names := make(map[int]string, len(input.Body.Names))
		for _, entry := range input.Body.Names {
			names[entry.PID] = entry.Name
		}
		s.service.SetNames(names)
		return &models.CommandResponse{Body: models.CommandData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "add-client",
		Method:      http.MethodPost,
		Path:        "/api/cameras/clients",
		Summary:     "Add viewer",
		Description: "Broadcast the viewer address to every camera process",
		Tags:        []string{"cameras"},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.AddClientRequest) (*models.CommandResponse, error) {
		if err := s.service.AddClient(input.Body.IP); err != nil {
			return nil, huma.Error500InternalServerError("Broadcast incomplete", err)
		}
		return &models.CommandResponse{Body: models.CommandData{Status: "sent"}}, nil
	})

	for _, route := range []struct {
		id, path, summary string
		run               func() error
	}{
		{"play-cameras", "/api/cameras/play", "Play", func() error { return s.service.Play() }},
		{"pause-cameras", "/api/cameras/pause", "Pause", func() error { return s.service.Pause() }},
		{"stop-cameras", "/api/cameras/stop", "Stop", func() error { return s.service.Stop() }},
	} {
		run := route.run
		huma.Register(s.api, huma.Operation{
			OperationID: route.id,
			Method:      http.MethodPost,
			Path:        route.path,
			Summary:     route.summary,
			Description: "Broadcast the " + route.summary + " command to every camera process",
			Tags:        []string{"cameras"},
			Security:    withAuth(),
		}, func(_ context.Context, _ *struct{}) (*models.CommandResponse, error) {
			if err := run(); err != nil {
				return nil, huma.Error500InternalServerError("Broadcast incomplete", err)
			}
			return &models.CommandResponse{Body: models.CommandData{Status: "sent"}}, nil
		})
	}
}
