// Package storage reports on recorded video files and the disk they live on.
// Everything here is best-effort; callers surface absent data rather than
// failing a status response.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

// Video is one recorded file.
type Video struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Usage describes the filesystem holding the recording directory.
type Usage struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

// ListVideos returns the regular files in dir, newest first.
func ListVideos(dir string) ([]Video, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read recording directory: %w", err)
	}

	var videos []Video
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, Video{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].ModTime.After(videos[j].ModTime)
	})
	return videos, nil
}

// DiskUsage reports filesystem usage for the given path.
func DiskUsage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return Usage{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  total - free,
	}, nil
}

// DeleteByPrefix removes files in dir whose names start with prefix.
// Returns the deleted file names.
func DeleteByPrefix(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", prefix, err)
	}

	var deleted []string
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return deleted, fmt.Errorf("remove %s: %w", match, err)
		}
		deleted = append(deleted, filepath.Base(match))
	}
	return deleted, nil
}
