// Package config loads camfeed's configuration from environment
// variables, layering koanf's environment provider over built-in
// defaults.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// Config is the effective, validated configuration for one camfeed
// instance.
type Config struct {
	VideoFile       string `koanf:"video_file"`
	VideoFPS        int    `koanf:"video_fps"`
	VideoCRF        int    `koanf:"video_crf"`
	AudioBitrate    string `koanf:"audio_bitrate"`
	VideoResolution string `koanf:"video_resolution"`
	VideoQuality    float64
	HasVideoQuality bool
	ServerHost      string `koanf:"server_host"`
	ServerPort      int    `koanf:"server_port"`
	MaxClients      int    `koanf:"max_clients"`
	GrowingFile     bool   `koanf:"growing_file"`
	TranscoderPath  string `koanf:"transcoder_path"`
	PublicDir       string `koanf:"public_dir"`
	TLSCertFile     string `koanf:"tls_cert_file"`
	TLSKeyFile      string `koanf:"tls_key_file"`
}

// Load reads VIDEO_*, SERVER_*, MAX_CLIENTS and GROWING_FILE from the
// process environment, applying defaults for anything unset.
func Load() (*Config, error) {
	cfg := Config{
		VideoFile:      "video.mp4",
		VideoFPS:       30,
		VideoCRF:       23,
		AudioBitrate:   "128k",
		ServerHost:     "127.0.0.1",
		ServerPort:     8000,
		MaxClients:     100,
		TranscoderPath: "ffmpeg",
		PublicDir:      "public",
	}

	k := koanf.New(".")
	envProvider := env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(key), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	// Unmarshal overlays only the keys present in the environment; fields
	// left untouched keep the defaults set above.
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if raw := k.String("video_quality"); raw != "" {
		q, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("config: VIDEO_QUALITY must be a float in [0,1]: %w", err)
		}
		cfg.VideoQuality = q
		cfg.HasVideoQuality = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.VideoFPS <= 0 {
		return fmt.Errorf("config: VIDEO_FPS must be positive, got %d", c.VideoFPS)
	}
	if c.MaxClients < 0 {
		return fmt.Errorf("config: MAX_CLIENTS must not be negative, got %d", c.MaxClients)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("config: SERVER_PORT out of range, got %d", c.ServerPort)
	}
	if c.HasVideoQuality && (c.VideoQuality < 0 || c.VideoQuality > 1) {
		return fmt.Errorf("config: VIDEO_QUALITY must be in [0,1], got %f", c.VideoQuality)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: TLS_CERT_FILE and TLS_KEY_FILE must both be set or both be empty")
	}
	return nil
}

// Addr is the host:port the HTTP server should bind.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
