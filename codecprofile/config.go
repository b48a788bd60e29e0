package codecprofile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the user-facing settings of an encoder profile.
type Config struct {
	// Codec is the descriptor name, e.g. "h264_vaapi".
	Codec   string `json:"codec" yaml:"codec"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// BitRate is in kb/s, 0 means the rate control is left to QP.
	BitRate float64 `json:"bit_rate,omitempty" yaml:"bit_rate,omitempty"`
	QP      int     `json:"qp,omitempty" yaml:"qp,omitempty"`
	Quality int     `json:"quality,omitempty" yaml:"quality,omitempty"`
}

func ParseConfigYAML(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal the codec profile config: %w", err)
	}
	return cfg, nil
}

// clamped brings every numeric setting into the range the descriptor
// declares for it; settings the descriptor does not declare are zeroed.
func (cfg Config) clamped(props []Property) Config {
	clampInt := func(id string, v int) int {
		p, ok := findProperty(props, id)
		if !ok {
			return 0
		}
		return int(p.Clamp(float64(v)))
	}
	clampFloat := func(id string, v float64) float64 {
		p, ok := findProperty(props, id)
		if !ok {
			return 0
		}
		return p.Clamp(v)
	}
	cfg.BitRate = clampFloat(PropertyIDBitRate, cfg.BitRate)
	cfg.QP = clampInt(PropertyIDQP, cfg.QP)
	cfg.Quality = clampInt(PropertyIDQuality, cfg.Quality)
	return cfg
}
