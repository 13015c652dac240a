package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"camfleet/internal/api/models"
	"camfleet/internal/storage"
)

// registerRecordingRoutes wires the recording session and video listing
// operations.
func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-recording",
		Method:      http.MethodPost,
		Path:        "/api/recordings",
		Summary:     "Start recording",
		Description: "Generate per-process file stems and broadcast the record command",
		Tags:        []string{"recordings"},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.RecordRequest) (*models.RecordResponse, error) {
		stems, err := s.service.Record(input.Body.Session)
		if err != nil {
			return nil, huma.Error500InternalServerError("Record broadcast incomplete", err)
		}
		return &models.RecordResponse{
			Body: models.RecordData{
				Session: input.Body.Session,
				Stems:   stems,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-recording",
		Method:      http.MethodDelete,
		Path:        "/api/recordings",
		Summary:     "Stop recording",
		Description: "Broadcast the stop-record command, optionally deleting the session's files",
		Tags:        []string{"recordings"},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.StopRecordRequest) (*models.CommandResponse, error) {
		if err := s.service.StopRecord(input.DeleteFiles); err != nil {
			return nil, huma.Error500InternalServerError("Stop-record broadcast incomplete", err)
		}
		return &models.CommandResponse{Body: models.CommandData{Status: "stopped"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-videos",
		Method:      http.MethodGet,
		Path:        "/api/videos",
		Summary:     "List videos",
		Description: "Recorded files in the recording directory, newest first",
		Tags:        []string{"recordings"},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.VideoListResponse, error) {
		videos, err := storage.ListVideos(s.service.RecordDir())
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list videos", err)
		}
		return &models.VideoListResponse{
			Body: models.VideoListData{
				Videos: videos,
				Count:  len(videos),
			},
		}, nil
	})
}
