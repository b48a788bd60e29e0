package codecprofile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwaccel"
)

func TestH264Open(t *testing.T) {
	ctx := context.Background()
	d := NewH264()

	t.Run("defaults", func(t *testing.T) {
		opts, err := d.Open(ctx, Config{})
		require.NoError(t, err)
		require.Equal(t, DictionaryItems{
			{Key: "pix_fmt", Value: "vaapi"},
			{Key: "qp", Value: "20"},
			{Key: "quality", Value: "0"},
		}, opts)
	})

	t.Run("bitrate_wins_over_qp", func(t *testing.T) {
		opts, err := d.Open(ctx, Config{Codec: "h264_vaapi", BitRate: 2500, QP: 30, Quality: 4})
		require.NoError(t, err)
		require.Equal(t, DictionaryItems{
			{Key: "pix_fmt", Value: "vaapi"},
			{Key: "b", Value: "2500000"},
			{Key: "quality", Value: "4"},
		}, opts)
	})

	t.Run("clamped", func(t *testing.T) {
		opts, err := d.Open(ctx, Config{QP: 99, Quality: 42})
		require.NoError(t, err)
		qp, _ := opts.Get("qp")
		require.Equal(t, "52", qp)
		quality, _ := opts.Get("quality")
		require.Equal(t, "8", quality)

		opts, err = d.Open(ctx, Config{QP: -5, Quality: -1, BitRate: -100})
		require.NoError(t, err)
		qp, _ = opts.Get("qp")
		require.Equal(t, "20", qp)
		_, ok := opts.Get("b")
		require.False(t, ok)
	})

	t.Run("profile", func(t *testing.T) {
		opts, err := d.Open(ctx, Config{Profile: "Constrained Baseline"})
		require.NoError(t, err)
		v, ok := opts.Get("profile")
		require.True(t, ok)
		require.Equal(t, "constrained_baseline", v)

		_, err = d.Open(ctx, Config{Profile: "high10"})
		require.Error(t, err)
	})

	t.Run("wrong_codec", func(t *testing.T) {
		_, err := d.Open(ctx, Config{Codec: "hevc_vaapi"})
		require.Error(t, err)
	})
}

func TestHEVCOpen(t *testing.T) {
	ctx := context.Background()
	d := NewHEVC()

	opts, err := d.Open(ctx, Config{Quality: 5})
	require.NoError(t, err)
	require.Equal(t, DictionaryItems{
		{Key: "pix_fmt", Value: "vaapi"},
		{Key: "qp", Value: "25"},
	}, opts)

	opts, err = d.Open(ctx, Config{QP: 31, Profile: "main"})
	require.NoError(t, err)
	require.Equal(t, DictionaryItems{
		{Key: "pix_fmt", Value: "vaapi"},
		{Key: "profile", Value: "main"},
		{Key: "qp", Value: "31"},
	}, opts)

	require.Len(t, d.Profiles(), 1)
	_, hasQuality := findProperty(d.Properties(), PropertyIDQuality)
	require.False(t, hasQuality)
}

func TestMPEG2Open(t *testing.T) {
	opts, err := NewMPEG2().Open(context.Background(), Config{})
	require.NoError(t, err)
	qp, ok := opts.Get("qp")
	require.True(t, ok)
	require.Equal(t, "10", qp)
}

func TestBaseOpen(t *testing.T) {
	opts, err := NewVAAPI().Open(context.Background(), Config{BitRate: 1000})
	require.NoError(t, err)
	require.Equal(t, DictionaryItems{{Key: "pix_fmt", Value: "vaapi"}}, opts)
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"vaapi", "h264_vaapi", "hevc_vaapi", "mpeg2_vaapi"} {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, name, d.Name())
	}
	_, ok := Lookup("vp9_vaapi")
	require.False(t, ok)

	d, ok := ForCodec(hwaccel.CodecIDHEVC)
	require.True(t, ok)
	require.Equal(t, "hevc_vaapi", d.Name())
	_, ok = ForCodec(hwaccel.CodecIDUndefined)
	require.False(t, ok)
}

func TestProfileHint(t *testing.T) {
	d := NewH264()
	for s, expected := range map[string]hwaccel.ProfileHint{
		"":                     hwaccel.ProfileHintUnknown,
		"High":                 hwaccel.ProfileHintH264High,
		"high":                 hwaccel.ProfileHintH264High,
		"main":                 hwaccel.ProfileHintH264Main,
		"constrained_baseline": hwaccel.ProfileHintH264ConstrainedBaseline,
		"Baseline":             hwaccel.ProfileHintH264Baseline,
	} {
		hint, err := ProfileHint(d, Config{Profile: s})
		require.NoError(t, err, s)
		require.Equal(t, expected, hint, s)
	}

	_, err := ProfileHint(NewHEVC(), Config{Profile: "main10"})
	require.Error(t, err)
}

func TestPropertiesTable(t *testing.T) {
	props := NewH264().Properties()
	require.Len(t, props, 3)
	quality, ok := findProperty(props, PropertyIDQuality)
	require.True(t, ok)
	require.True(t, quality.Expert)
	require.Equal(t, 5, quality.Group)
	require.Equal(t, PropertyTypeInt, quality.Type)

	qp, ok := findProperty(props, PropertyIDQP)
	require.True(t, ok)
	require.Equal(t, float64(52), qp.Max)
	require.False(t, qp.Expert)

	// the shared table is not modified by the H.264 descriptor
	require.Len(t, NewVAAPI().Properties(), 2)
}
