// Package pipeline implements the frame-processing path: directory polling,
// preprocessing, face matching and match recording.
package pipeline

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FrameInfo is the metadata a capture process encodes into a frame filename,
// e.g. "CAM01_frame_20250429_221530.jpg".
type FrameInfo struct {
	Name       string
	CameraID   *string // nil when the filename carries no parsable prefix
	CapturedAt time.Time
}

var timestampRe = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[_-]?(\d{2})(\d{2})(\d{2})`)

// ParseFrameName extracts the camera id and capture timestamp from a frame
// filename. An unparsable timestamp falls back to now; a missing camera
// prefix yields a nil camera id.
func ParseFrameName(name string, now time.Time) FrameInfo {
	info := FrameInfo{Name: name, CapturedAt: now}

	if prefix, _, ok := strings.Cut(name, "_frame_"); ok && prefix != "" {
		cam := prefix
		info.CameraID = &cam
	}

	if m := timestampRe.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		sec, _ := strconv.Atoi(m[6])
		if validClock(month, day, hour, minute, sec) {
			info.CapturedAt = time.Date(year, time.Month(month), day, hour, minute, sec, 0, now.Location())
		}
	}
	return info
}

// validClock rejects digit runs that happen to match the timestamp pattern
// but do not form a real wall-clock value.
func validClock(month, day, hour, minute, sec int) bool {
	return month >= 1 && month <= 12 &&
		day >= 1 && day <= 31 &&
		hour <= 23 && minute <= 59 && sec <= 59
}

// IsFrameFile reports whether a directory entry looks like a capture frame.
func IsFrameFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
