package caps

import (
	"errors"
	"testing"
)

func TestSelectHighestFrameRate(t *testing.T) {
	formats := []CaptureFormat{
		{PixelFormat: "YUY2", Width: 1920, Height: 1080, FPS: 30},
		{PixelFormat: "YUY2", Width: 1920, Height: 1080, FPS: 60},
		{PixelFormat: "YUY2", Width: 640, Height: 480, FPS: 15},
	}

	got, err := Select(formats, "YUY2", 1920, 1080)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.FPS != 60 {
		t.Errorf("FPS = %v, want 60", got.FPS)
	}
}

func TestSelectCaseInsensitivePixelFormat(t *testing.T) {
	formats := []CaptureFormat{
		{PixelFormat: "YUY2", Width: 640, Height: 480, FPS: 30},
	}

	if _, err := Select(formats, "yuy2", 640, 480); err != nil {
		t.Errorf("lowercase pixel format should match: %v", err)
	}
}

func TestSelectNoMatch(t *testing.T) {
	formats := []CaptureFormat{
		{PixelFormat: "YUY2", Width: 640, Height: 480, FPS: 30},
	}

	_, err := Select(formats, "NV12", 640, 480)
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}

	if _, err := Select(nil, "YUY2", 640, 480); !errors.Is(err, ErrNoMatch) {
		t.Errorf("empty set: err = %v, want ErrNoMatch", err)
	}
}

func TestSelectFirstWinsTies(t *testing.T) {
	first := CaptureFormat{PixelFormat: "YUY2", Width: 640, Height: 480, FPS: 30}
	second := CaptureFormat{PixelFormat: "yuy2", Width: 640, Height: 480, FPS: 30}

	got, err := Select([]CaptureFormat{first, second}, "YUY2", 640, 480)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != first {
		t.Errorf("got %+v, want the first of two equal-rate entries", got)
	}
}
