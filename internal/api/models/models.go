package models

import (
	"camfleet/internal/cameras"
	"camfleet/internal/storage"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Fleet status models
type StatusResponse struct {
	Body cameras.Status
}

// Restart models
type RestartData struct {
	Status  string `json:"status" example:"restarted" doc:"Restart outcome"`
	Started int    `json:"started" example:"2" doc:"Number of processes running after restart"`
}

type RestartResponse struct {
	Body RestartData
}

// Camera name models
type CameraName struct {
	PID  int    `json:"pid" example:"4321" doc:"Process id the label applies to"`
	Name string `json:"name" minLength:"1" pattern:"^[a-zA-Z0-9_-]+$" example:"left" doc:"Display label used in recording stems"`
}

type SetNamesRequest struct {
	Body struct {
		Names []CameraName `json:"names" doc:"Full label mapping; replaces the previous one"`
	}
}

// Broadcast command models
type AddClientRequest struct {
	Body struct {
		IP string `json:"ip" minLength:"1" example:"10.0.0.5" doc:"Viewer address passed to every process"`
	}
}

type CommandData struct {
	Status string `json:"status" example:"sent" doc:"Broadcast outcome"`
}

type CommandResponse struct {
	Body CommandData
}

// Recording models
type RecordRequest struct {
	Body struct {
		Session string `json:"session" minLength:"1" pattern:"^[a-zA-Z0-9_-]+$" example:"trial-7" doc:"Session label used as the stem prefix"`
	}
}

type RecordData struct {
	Session string   `json:"session" example:"trial-7" doc:"Session label"`
	Stems   []string `json:"stems" doc:"Generated per-process file-name stems"`
}

type RecordResponse struct {
	Body RecordData
}

type StopRecordRequest struct {
	DeleteFiles bool `query:"delete_files" doc:"Also delete files matching the session's stems"`
}

// Video listing models
type VideoListData struct {
	Videos []storage.Video `json:"videos" doc:"Recorded files, newest first"`
	Count  int             `json:"count" example:"4" doc:"Number of files"`
}

type VideoListResponse struct {
	Body VideoListData
}
