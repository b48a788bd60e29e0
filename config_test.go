package hwaccel

import (
	"encoding/json"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

func TestConfigMarshalUnmarshal(t *testing.T) {
	cfg := &Config{
		DevicePaths: []string{"/dev/dri/renderD131", "/dev/dri/card3"},
	}

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var cfgDup Config
	err = yaml.Unmarshal(b, &cfgDup)
	require.NoError(t, err)
	require.Equal(t, cfg, &cfgDup)

	cfgParsed, err := ParseConfigYAML(b)
	require.NoError(t, err)
	require.Equal(t, *cfg, cfgParsed)
}

func TestParseConfigYAMLDefaults(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte("{}"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	_, err = ParseConfigYAML([]byte("device_paths: {"))
	require.Error(t, err)
}

type enumsConfig struct {
	Codec       CodecID     `json:"codec" yaml:"codec"`
	PixelFormat PixelFormat `json:"pix_fmt" yaml:"pix_fmt"`
}

func TestEnumsMarshalUnmarshal(t *testing.T) {
	cfg := enumsConfig{
		Codec:       CodecIDHEVC,
		PixelFormat: PixelFormatP010,
	}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.JSONEq(t, `{"codec":"hevc","pix_fmt":"p010le"}`, string(b))
	var jsonDup enumsConfig
	require.NoError(t, json.Unmarshal(b, &jsonDup))
	require.Equal(t, cfg, jsonDup)

	b, err = yamlv3.Marshal(cfg)
	require.NoError(t, err)
	var yamlDup enumsConfig
	require.NoError(t, yamlv3.Unmarshal(b, &yamlDup))
	require.Equal(t, cfg, yamlDup)

	require.Error(t, yamlv3.Unmarshal([]byte("codec: vp9\n"), &yamlDup))
}

func TestParseProfileHint(t *testing.T) {
	for _, tc := range []struct {
		codecID  CodecID
		in       string
		expected ProfileHint
	}{
		{CodecIDH264, "", ProfileHintUnknown},
		{CodecIDH264, "High", ProfileHintH264High},
		{CodecIDH264, "Constrained Baseline", ProfileHintH264ConstrainedBaseline},
		{CodecIDHEVC, "main", ProfileHintHEVCMain},
		{CodecIDHEVC, "Main 10", ProfileHintHEVCMain10},
		{CodecIDMPEG2Video, "main", ProfileHintMPEG2Main},
	} {
		hint, err := ParseProfileHint(tc.codecID, tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.expected, hint, tc.in)
	}

	_, err := ParseProfileHint(CodecIDHEVC, "high")
	require.Error(t, err)
}

func TestPixelFormatStructuralEquality(t *testing.T) {
	require.True(t, PixelFormatNV12.IsStructurallyEqual(PixelFormatYUV420P))
	require.True(t, PixelFormatUYVY422.IsStructurallyEqual(PixelFormatYUYV422))
	require.False(t, PixelFormatNV12.IsStructurallyEqual(PixelFormatYUYV422))
	require.False(t, PixelFormatGray8.IsStructurallyEqual(PixelFormatNV12))
	require.False(t, PixelFormatNone.IsStructurallyEqual(PixelFormatNone))

	for pf := PixelFormatYUV420P; pf < EndOfPixelFormat; pf++ {
		parsed, err := ParsePixelFormat(pf.String())
		require.NoError(t, err)
		require.Equal(t, pf, parsed)
	}
}
