package hwaccel

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type CodecID uint

const (
	CodecIDUndefined = CodecID(iota)
	CodecIDMPEG2Video
	CodecIDH264
	CodecIDHEVC
	EndOfCodecID
)

func (c CodecID) String() string {
	switch c {
	case CodecIDUndefined:
		return "<undefined>"
	case CodecIDMPEG2Video:
		return "mpeg2video"
	case CodecIDH264:
		return "h264"
	case CodecIDHEVC:
		return "hevc"
	}
	return fmt.Sprintf("unexpected_codec_id_%d", uint(c))
}

func (c CodecID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func ParseCodecID(s string) (CodecID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for cmp := CodecIDUndefined; cmp < EndOfCodecID; cmp++ {
		if cmp.String() == s {
			return cmp, nil
		}
	}
	return CodecIDUndefined, fmt.Errorf("unknown value of the CodecID: '%s'", s)
}

func (c *CodecID) UnmarshalJSON(b []byte) error {
	if c == nil {
		return fmt.Errorf("CodecID is nil")
	}
	v, err := ParseCodecID(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c CodecID) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c *CodecID) UnmarshalYAML(value *yaml.Node) error {
	return c.UnmarshalJSON([]byte(value.Value))
}

// ProfileHint is the codec-level profile the stream declares (as opposed
// to the device-level Profile it is negotiated into).
type ProfileHint int

const (
	ProfileHintUnknown = ProfileHint(iota)
	ProfileHintH264Baseline
	ProfileHintH264ConstrainedBaseline
	ProfileHintH264Main
	ProfileHintH264High
	ProfileHintHEVCMain
	ProfileHintHEVCMain10
	ProfileHintMPEG2Simple
	ProfileHintMPEG2Main
	EndOfProfileHint
)

func (p ProfileHint) String() string {
	switch p {
	case ProfileHintUnknown:
		return "unknown"
	case ProfileHintH264Baseline:
		return "baseline"
	case ProfileHintH264ConstrainedBaseline:
		return "constrained_baseline"
	case ProfileHintH264Main:
		return "main"
	case ProfileHintH264High:
		return "high"
	case ProfileHintHEVCMain:
		return "hevc_main"
	case ProfileHintHEVCMain10:
		return "hevc_main10"
	case ProfileHintMPEG2Simple:
		return "mpeg2_simple"
	case ProfileHintMPEG2Main:
		return "mpeg2_main"
	}
	return fmt.Sprintf("unexpected_profile_hint_%d", int(p))
}

var profileHintNames = map[CodecID]map[string]ProfileHint{
	CodecIDH264: {
		"baseline":             ProfileHintH264Baseline,
		"constrained_baseline": ProfileHintH264ConstrainedBaseline,
		"main":                 ProfileHintH264Main,
		"high":                 ProfileHintH264High,
	},
	CodecIDHEVC: {
		"main":    ProfileHintHEVCMain,
		"main10":  ProfileHintHEVCMain10,
		"main_10": ProfileHintHEVCMain10,
	},
	CodecIDMPEG2Video: {
		"simple": ProfileHintMPEG2Simple,
		"main":   ProfileHintMPEG2Main,
	},
}

// ParseProfileHint resolves a human-readable profile name in the context
// of the given codec ("main" means different things for H.264 and HEVC).
func ParseProfileHint(codecID CodecID, s string) (ProfileHint, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if s == "" || s == "unknown" {
		return ProfileHintUnknown, nil
	}
	if p, ok := profileHintNames[codecID][s]; ok {
		return p, nil
	}
	return ProfileHintUnknown, fmt.Errorf("unknown profile '%s' for codec %s", s, codecID)
}

type EntryPoint int

const (
	EntryPointNone = EntryPoint(0)
	// EntryPointVLD is the decode entry point.
	EntryPointVLD = EntryPoint(1)
	// EntryPointEncSlice is the encode entry point.
	EntryPointEncSlice = EntryPoint(6)
)

func (e EntryPoint) String() string {
	switch e {
	case EntryPointNone:
		return "none"
	case EntryPointVLD:
		return "decode"
	case EntryPointEncSlice:
		return "encode"
	}
	return fmt.Sprintf("entrypoint_%d", int(e))
}

// Profile is a device-level (VA) acceleration profile identifier.
type Profile int

const (
	ProfileNone                    = Profile(-1)
	ProfileMPEG2Simple             = Profile(0)
	ProfileMPEG2Main               = Profile(1)
	ProfileH264Baseline            = Profile(5)
	ProfileH264Main                = Profile(6)
	ProfileH264High                = Profile(7)
	ProfileH264ConstrainedBaseline = Profile(13)
	ProfileHEVCMain                = Profile(17)
	ProfileHEVCMain10              = Profile(18)
)

func (p Profile) String() string {
	switch p {
	case ProfileNone:
		return "VAProfileNone"
	case ProfileMPEG2Simple:
		return "VAProfileMPEG2Simple"
	case ProfileMPEG2Main:
		return "VAProfileMPEG2Main"
	case ProfileH264Baseline:
		return "VAProfileH264Baseline"
	case ProfileH264Main:
		return "VAProfileH264Main"
	case ProfileH264High:
		return "VAProfileH264High"
	case ProfileH264ConstrainedBaseline:
		return "VAProfileH264ConstrainedBaseline"
	case ProfileHEVCMain:
		return "VAProfileHEVCMain"
	case ProfileHEVCMain10:
		return "VAProfileHEVCMain10"
	}
	return fmt.Sprintf("VAProfile(%d)", int(p))
}

// Config configures device discovery.
type Config struct {
	// DevicePaths is the ordered list of candidates; the first one that
	// opens wins.
	DevicePaths []string `json:"device_paths,omitempty" yaml:"device_paths,omitempty"`
}

func DefaultDevicePaths() []string {
	return []string{
		"/dev/dri/renderD128",
		"/dev/dri/renderD129",
		"/dev/dri/renderD130",
		"/dev/dri/card0",
		"/dev/dri/card1",
		"/dev/dri/card2",
	}
}

func DefaultConfig() Config {
	return Config{
		DevicePaths: DefaultDevicePaths(),
	}
}

func (cfg Config) WithDefaults() Config {
	if len(cfg.DevicePaths) == 0 {
		cfg.DevicePaths = DefaultDevicePaths()
	}
	return cfg
}

func ParseConfigYAML(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to un-YAML-ize the config: %w", err)
	}
	return cfg.WithDefaults(), nil
}
