package config

import "camfeed/internal/source"

// Quality builds the effective source.Quality for this configuration: the
// explicit {CRF, resolution} pair, or the scalar override when set (§3).
func (c *Config) Quality() source.Quality {
	q := source.Quality{CRF: c.VideoCRF, Resolution: c.VideoResolution}
	if c.HasVideoQuality {
		v := c.VideoQuality
		q.Scalar = &v
	}
	return q
}
