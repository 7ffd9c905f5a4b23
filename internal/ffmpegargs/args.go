// Package ffmpegargs builds the ffmpeg command-line arguments for the
// broadcaster's transcoder child process, from a media source and the
// configured quality knobs.
package ffmpegargs

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"camfeed/internal/source"
)

// Options configures argument synthesis. FPS, AudioBitrate and Quality are
// the effective encoder settings; Path and Kind describe the input.
type Options struct {
	Path    string
	Kind    source.Kind
	Quality source.Quality
	FPS     int
	AudioBitrate string
}

// targetFragmentDurationMicros is ffmpeg's -frag_duration unit (microseconds).
const targetFragmentDurationMicros = 500_000

// Build returns the full ffmpeg argument list, ready to pass to
// exec.Command("ffmpeg", args...). The output always targets fragmented
// MP4 on stdout (pipe:1); nothing here depends on the OS beyond device
// format selection, which varies by platform per spec.
func Build(opts Options) []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, inputArgs(opts)...)
	args = append(args, filterArgs(opts)...)
	args = append(args, outputArgs(opts)...)
	return args
}

func inputArgs(opts Options) []string {
	var args []string
	path := opts.Path
	kind := opts.Kind

	// Real-time pacing: anything that isn't already live (a file, a
	// growing file, or a remote HTTP source masquerading as LiveStream)
	// must be paced at wall-clock rate or every client sees fast-forward
	// playback and the download races ahead of what viewers can consume.
	if !kind.IsLive() || source.IsHTTP(path) {
		args = append(args, "-re")
	}

	if kind.CanLoop() {
		args = append(args, "-stream_loop", "-1")
	}

	switch kind {
	case source.Device:
		if strings.HasPrefix(strings.ToLower(path), "avfoundation:") {
			args = append(args, "-f", "avfoundation")
			path = source.DeviceSpec(path)
		} else if strings.HasPrefix(path, "/dev/video") {
			args = append(args, "-f", "v4l2")
			if runtime.GOOS == "linux" {
				args = append(args, "-framerate", fmt.Sprintf("%d", opts.FPS))
			}
		} else if strings.HasPrefix(strings.ToLower(path), "dshow:") {
			args = append(args, "-f", "dshow")
			path = source.DeviceSpec(path)
		}
	case source.LiveStream:
		if source.IsRTSP(path) {
			args = append(args, "-rtsp_transport", "tcp")
		}
		if source.IsHTTP(path) {
			args = append(args,
				"-user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
				"-reconnect", "1",
				"-reconnect_streamed", "1",
				"-reconnect_delay_max", "5",
			)
		}
	}

	args = append(args, "-i", path)
	return args
}

// filterArgs inserts a scale filter only when the effective scale is below
// 1.0 or a literal resolution is configured. A scale factor is rounded down
// to even pixel dimensions, which H.264 4:2:0 requires; a literal resolution
// is passed to the filter as given.
func filterArgs(opts Options) []string {
	if scale := opts.Quality.EffectiveScale(); scale != nil && *scale < 1.0 {
		return []string{"-vf", fmt.Sprintf("scale=trunc(iw*%.4f/2)*2:trunc(ih*%.4f/2)*2", *scale, *scale)}
	}
	if opts.Quality.Resolution != "" {
		if w, h, ok := source.ParseResolution(opts.Quality.Resolution); ok {
			return []string{"-vf", fmt.Sprintf("scale=%d:%d", w, h)}
		}
		slog.Default().Warn("invalid resolution string, falling back to source resolution", "resolution", opts.Quality.Resolution)
	}
	return nil
}

func outputArgs(opts Options) []string {
	crf := opts.Quality.EffectiveCRF()
	return []string{
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.1",
		"-pix_fmt", "yuv420p",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-crf", fmt.Sprintf("%d", crf),
		"-g", fmt.Sprintf("%d", opts.FPS),
		"-r", fmt.Sprintf("%d", opts.FPS),
		"-c:a", "aac",
		"-ac", "2",
		"-ar", "44100",
		"-b:a", opts.AudioBitrate,
		"-f", "mp4",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-frag_duration", fmt.Sprintf("%d", targetFragmentDurationMicros),
		"pipe:1",
	}
}
