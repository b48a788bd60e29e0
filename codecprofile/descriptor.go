// Package codecprofile describes the VAAPI encoders a pipeline may select
// and turns user settings into the encoder options.
package codecprofile

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
)

// Profile is an encoder profile a user may select.
type Profile struct {
	Hint hwaccel.ProfileHint
	// Name is the human-readable name.
	Name string
	// Option is the value of the encoder "profile" option.
	Option string
}

type Descriptor interface {
	Name() string
	CodecID() hwaccel.CodecID
	Profiles() []Profile
	Properties() []Property

	// Open validates and clamps cfg and returns the encoder options.
	Open(ctx context.Context, cfg Config) (DictionaryItems, error)
}

var vaapiProperties = []Property{
	{
		ID:          PropertyIDBitRate,
		Type:        PropertyTypeFloat,
		Caption:     "Bitrate (kb/s) (0=auto)",
		Description: "Target bitrate.",
		Group:       3,
		Min:         0,
		Max:         math.MaxInt32,
	},
	{
		ID:          PropertyIDQP,
		Type:        PropertyTypeInt,
		Caption:     "Constant QP (0=auto)",
		Description: "Fixed QP of P frames [0-52].",
		Group:       3,
		Min:         0,
		Max:         52,
	},
}

var qualityProperty = Property{
	ID:          PropertyIDQuality,
	Type:        PropertyTypeInt,
	Caption:     "Quality (0=auto)",
	Description: "Set encode quality (trades off against speed, higher is faster) [0-8].",
	Group:       5,
	Min:         0,
	Max:         8,
	Expert:      true,
}

// Base is the record shared by all VAAPI encoders: every one of them
// takes device surfaces as input.
type Base struct {
	name       string
	codecID    hwaccel.CodecID
	profiles   []Profile
	properties []Property
}

var _ Descriptor = (*Base)(nil)

func (d *Base) Name() string {
	return d.name
}

func (d *Base) CodecID() hwaccel.CodecID {
	return d.codecID
}

func (d *Base) Profiles() []Profile {
	return slices.Clone(d.profiles)
}

func (d *Base) Properties() []Property {
	return slices.Clone(d.properties)
}

// FindProfile matches s against the profile names and option values,
// case-insensitively.
func (d *Base) FindProfile(s string) (Profile, bool) {
	return findProfile(d.profiles, s)
}

func findProfile(profiles []Profile, s string) (Profile, bool) {
	s = strings.TrimSpace(s)
	for _, p := range profiles {
		if strings.EqualFold(p.Name, s) || strings.EqualFold(p.Option, s) {
			return p, true
		}
	}
	return Profile{}, false
}

func (d *Base) Open(ctx context.Context, cfg Config) (DictionaryItems, error) {
	opts, _, err := d.open(ctx, cfg)
	return opts, err
}

func (d *Base) open(
	ctx context.Context,
	cfg Config,
) (_ret DictionaryItems, _cfg Config, _err error) {
	logger.Tracef(ctx, "open(ctx, %#+v)", cfg)
	defer func() { logger.Tracef(ctx, "/open(ctx, %#+v): %s %v", cfg, _ret, _err) }()

	if cfg.Codec != "" && cfg.Codec != d.name {
		return nil, cfg, fmt.Errorf("the config is for codec '%s', not '%s'", cfg.Codec, d.name)
	}
	cfg = cfg.clamped(d.properties)

	var opts DictionaryItems
	opts.Set("pix_fmt", hwaccel.PixelFormatVAAPI.String())
	if cfg.Profile != "" {
		p, ok := d.FindProfile(cfg.Profile)
		if !ok {
			return nil, cfg, fmt.Errorf("codec '%s' does not support profile '%s'", d.name, cfg.Profile)
		}
		opts.Set("profile", p.Option)
	}
	return opts, cfg, nil
}

// setRateControl sets the target bitrate if one is configured, or the
// constant QP otherwise.
func setRateControl(opts *DictionaryItems, cfg Config, defaultQP int) {
	if cfg.BitRate > 0 {
		opts.SetIntDontOverwrite("b", int64(cfg.BitRate*1000))
		return
	}
	qp := cfg.QP
	if qp == 0 {
		qp = defaultQP
	}
	opts.SetIntDontOverwrite("qp", int64(qp))
}

type H264 struct {
	Base
}

var _ Descriptor = (*H264)(nil)

func (d *H264) Open(ctx context.Context, cfg Config) (DictionaryItems, error) {
	opts, cfg, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	setRateControl(&opts, cfg, 20)
	opts.SetInt("quality", int64(cfg.Quality))
	return opts, nil
}

type HEVC struct {
	Base
}

var _ Descriptor = (*HEVC)(nil)

func (d *HEVC) Open(ctx context.Context, cfg Config) (DictionaryItems, error) {
	opts, cfg, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	setRateControl(&opts, cfg, 25)
	return opts, nil
}

type MPEG2 struct {
	Base
}

var _ Descriptor = (*MPEG2)(nil)

func (d *MPEG2) Open(ctx context.Context, cfg Config) (DictionaryItems, error) {
	opts, cfg, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	setRateControl(&opts, cfg, 10)
	return opts, nil
}

func NewVAAPI() *Base {
	return &Base{
		name:       "vaapi",
		properties: vaapiProperties,
	}
}

func NewH264() *H264 {
	return &H264{Base: Base{
		name:    "h264_vaapi",
		codecID: hwaccel.CodecIDH264,
		profiles: []Profile{
			{Hint: hwaccel.ProfileHintH264Baseline, Name: "Baseline", Option: "baseline"},
			{Hint: hwaccel.ProfileHintH264ConstrainedBaseline, Name: "Constrained Baseline", Option: "constrained_baseline"},
			{Hint: hwaccel.ProfileHintH264Main, Name: "Main", Option: "main"},
			{Hint: hwaccel.ProfileHintH264High, Name: "High", Option: "high"},
		},
		properties: append(slices.Clone(vaapiProperties), qualityProperty),
	}}
}

func NewHEVC() *HEVC {
	return &HEVC{Base: Base{
		name:    "hevc_vaapi",
		codecID: hwaccel.CodecIDHEVC,
		profiles: []Profile{
			{Hint: hwaccel.ProfileHintHEVCMain, Name: "Main", Option: "main"},
		},
		properties: vaapiProperties,
	}}
}

func NewMPEG2() *MPEG2 {
	return &MPEG2{Base: Base{
		name:    "mpeg2_vaapi",
		codecID: hwaccel.CodecIDMPEG2Video,
		profiles: []Profile{
			{Hint: hwaccel.ProfileHintMPEG2Simple, Name: "Simple", Option: "simple"},
			{Hint: hwaccel.ProfileHintMPEG2Main, Name: "Main", Option: "main"},
		},
		properties: vaapiProperties,
	}}
}

// Descriptors returns the encoders, the base one first.
func Descriptors() []Descriptor {
	return []Descriptor{
		NewVAAPI(),
		NewH264(),
		NewHEVC(),
		NewMPEG2(),
	}
}

func Lookup(name string) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// ForCodec returns the encoder of the codec.
func ForCodec(codecID hwaccel.CodecID) (Descriptor, bool) {
	if codecID == hwaccel.CodecIDUndefined {
		return nil, false
	}
	for _, d := range Descriptors() {
		if d.CodecID() == codecID {
			return d, true
		}
	}
	return nil, false
}

// ProfileHint returns the stream profile cfg selects, or
// ProfileHintUnknown if it selects none.
func ProfileHint(d Descriptor, cfg Config) (hwaccel.ProfileHint, error) {
	if cfg.Profile == "" {
		return hwaccel.ProfileHintUnknown, nil
	}
	if p, ok := findProfile(d.Profiles(), cfg.Profile); ok {
		return p.Hint, nil
	}
	return hwaccel.ProfileHintUnknown, fmt.Errorf("codec '%s' does not support profile '%s'", d.Name(), cfg.Profile)
}
