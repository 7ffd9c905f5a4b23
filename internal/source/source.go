// Package source classifies a video source path and derives the quality
// knobs that drive the transcoder's encoder settings.
package source

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the tagged variant describing where media bytes originate from.
type Kind int

const (
	// File is a local, seekable video file. It can be looped and needs
	// real-time pacing so the transcoder doesn't drain it at disk speed.
	File Kind = iota
	// LiveStream is a remote protocol source (rtsp/http/srt/udp/tcp/rtp/rtmp).
	// It is already real-time and is not looped.
	LiveStream
	// Device is a local capture device (camera, screen).
	Device
	// GrowingFile is a local file still being written to (e.g. an OBS
	// recording). It is paced like File but never looped.
	GrowingFile
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case LiveStream:
		return "live_stream"
	case Device:
		return "device"
	case GrowingFile:
		return "growing_file"
	default:
		return "unknown"
	}
}

var liveStreamSchemes = []string{
	"rtsp://", "rtmp://", "http://", "https://", "srt://", "udp://", "tcp://", "rtp://",
}

// Detect classifies path into a Kind. growingFileHint mirrors the
// GROWING_FILE environment override: when set, a path that would otherwise
// be classified as File is reclassified as GrowingFile.
func Detect(path string, growingFileHint bool) Kind {
	lower := strings.ToLower(path)

	for _, scheme := range liveStreamSchemes {
		if strings.HasPrefix(lower, scheme) {
			return LiveStream
		}
	}

	if strings.HasPrefix(lower, "avfoundation:") {
		return Device
	}
	if strings.HasPrefix(path, "/dev/video") {
		return Device
	}
	if strings.HasPrefix(lower, "dshow:") || strings.Contains(lower, "video=") {
		return Device
	}

	if growingFileHint {
		return GrowingFile
	}
	return File
}

// IsLive reports whether the source already produces data in real time, so
// the transcoder needs neither pacing nor looping.
func (k Kind) IsLive() bool {
	return k == LiveStream || k == Device
}

// CanLoop reports whether the source is eligible for infinite looping.
func (k Kind) CanLoop() bool {
	return k == File
}

// IsHTTP reports whether path uses the http(s) scheme. Remote HTTP sources
// are classified as LiveStream (and so are not looped) but still need
// pacing, since an HTTP file download otherwise runs far ahead of
// wall-clock time.
func IsHTTP(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// IsRTSP reports whether path uses the rtsp scheme.
func IsRTSP(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), "rtsp://")
}

// DeviceSpec strips a platform device prefix ("avfoundation:", "dshow:")
// from path, returning the bare device spec passed to ffmpeg as -i. Paths
// without a recognized prefix are returned unchanged.
func DeviceSpec(path string) string {
	if idx := strings.Index(path, "avfoundation:"); idx == 0 {
		return path[len("avfoundation:"):]
	}
	if idx := strings.Index(path, "dshow:"); idx == 0 {
		return path[len("dshow:"):]
	}
	return path
}

// Quality is the pair of knobs that drive the encoder: an explicit
// constant-rate-factor and an optional literal resolution string, or a
// single scalar in [0,1] that maps monotonically to both.
type Quality struct {
	CRF        int
	Resolution string // e.g. "1280x720"; empty means "use source resolution"
	Scalar     *float64
}

// EffectiveCRF returns the CRF to pass to the encoder. When Scalar is set it
// wins over the explicit CRF: 1.0 maps to the sharpest CRF (18), 0.0 to the
// softest (40).
func (q Quality) EffectiveCRF() int {
	if q.Scalar != nil {
		s := clamp01(*q.Scalar)
		return int(math.Round(40 - s*22))
	}
	return q.CRF
}

// EffectiveScale returns the resolution scale factor derived from Scalar, or
// nil when Scalar is unset (in which case an explicit Resolution, if any,
// is used instead). 1.0 maps to full resolution, 0.0 to a quarter.
func (q Quality) EffectiveScale() *float64 {
	if q.Scalar == nil {
		return nil
	}
	s := clamp01(*q.Scalar)
	scale := 0.25 + s*0.75
	return &scale
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseResolution splits a "WxH" string into width and height. It returns
// ok=false for anything that doesn't parse as two positive integers.
func ParseResolution(res string) (w, h int, ok bool) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(res)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	wi, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || wi <= 0 {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || hi <= 0 {
		return 0, 0, false
	}
	return wi, hi, true
}
