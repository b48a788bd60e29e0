package vaapi

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/internal/devicemock"
)

func newTestRegistry(
	caps devicemock.Capabilities,
	script func(*devicemock.Device),
) (*Registry, *devicemock.Opener) {
	opener := devicemock.NewOpener(caps)
	if script != nil {
		opener.SetOnOpen(script)
	}
	return NewRegistry(opener, hwaccel.Config{}), opener
}

func h264HighCodec(width, height int) *hwaccel.CodecContext {
	return &hwaccel.CodecContext{
		CodecID:       hwaccel.CodecIDH264,
		CodecName:     "h264",
		Profile:       hwaccel.ProfileHintH264High,
		SwPixelFormat: hwaccel.PixelFormatYUV420P,
		CodedWidth:    width,
		CodedHeight:   height,
		Capabilities:  hwaccel.CodecCapabilityDirectRendering,
	}
}

func TestSessionDecodeH264High(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	s, err := NewSession(ctx, r, h264HighCodec(1920, 1080), hwaccel.EntryPointVLD)
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State())
	require.Equal(t, hwaccel.ProfileH264High, s.Profile())
	require.Equal(t, hwaccel.PixelFormatNV12, s.IOFormat())
	require.Equal(t, hwaccel.PixelFormatNV12, s.SwFormat())
	require.Equal(t, hwaccel.RTFormatYUV420, s.RTFormat())
	require.NotEqual(t, hwaccel.InvalidConfigID, s.ConfigID())
	require.NotEqual(t, hwaccel.InvalidContextID, s.ContextID())
	require.Equal(t, FramePoolSize, s.FramePool().Size())
	w, h := s.Size()
	require.Equal(t, 1920, w)
	require.Equal(t, 1080, h)

	dev := opener.Last()
	require.Equal(t, &hwaccel.FramePoolParams{
		RTFormat:       hwaccel.RTFormatYUV420,
		SoftwareFormat: hwaccel.PixelFormatNV12,
		Width:          1920,
		Height:         1080,
		Size:           32,
	}, dev.LastFramePoolParams())
	configs, pools, contexts := dev.LiveResources()
	require.Equal(t, [3]int{1, 1, 1}, [3]int{configs, pools, contexts})

	require.NoError(t, s.Close(ctx))
	require.Equal(t, StateDestroyed, s.State())
	require.Equal(t, []string{
		devicemock.MethodQueryProfiles,
		devicemock.MethodQueryEntryPoints,
		devicemock.MethodGetConfigAttribute,
		devicemock.MethodCreateConfig,
		devicemock.MethodQueryFrameConstraints,
		devicemock.MethodAllocFramePool,
		devicemock.MethodCreateContext,
		devicemock.MethodDestroyContext,
		devicemock.MethodFramePoolClose,
		devicemock.MethodDestroyConfig,
	}, dev.Calls())
	require.Nil(t, s.DeviceRef())
	require.Equal(t, hwaccel.InvalidConfigID, s.ConfigID())
	require.Equal(t, hwaccel.InvalidContextID, s.ContextID())

	callCount := len(dev.Calls())
	require.NoError(t, s.Close(ctx))
	require.Len(t, dev.Calls(), callCount)
	require.False(t, dev.IsClosed())

	var nilSession *Session
	require.NoError(t, nilSession.Close(ctx))
}

func TestSessionUnsupportedProfileAllocatesNothing(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	s, err := NewSession(ctx, r, &hwaccel.CodecContext{
		CodecID:       hwaccel.CodecIDHEVC,
		Profile:       hwaccel.ProfileHintHEVCMain10,
		SwPixelFormat: hwaccel.PixelFormatP010,
		CodedWidth:    3840,
		CodedHeight:   2160,
	}, hwaccel.EntryPointVLD)
	require.Nil(t, s)
	require.ErrorIs(t, err, hwaccel.ErrUnsupportedCodecOrProfile)

	dev := opener.Last()
	require.NotContains(t, dev.Calls(), devicemock.MethodCreateConfig)
	require.NotContains(t, dev.Calls(), devicemock.MethodAllocFramePool)
	require.NotContains(t, dev.Calls(), devicemock.MethodCreateContext)
	require.False(t, dev.IsClosed())
}

func TestSessionEncodeOversized(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	s, err := NewSession(ctx, r, h264HighCodec(4097, 2160), hwaccel.EntryPointEncSlice)
	require.Nil(t, s)
	require.ErrorIs(t, err, hwaccel.ErrSizeUnsupported)
	require.Contains(t, err.Error(), "4097x2160")

	dev := opener.Last()
	calls := dev.Calls()
	require.Contains(t, calls, devicemock.MethodDestroyConfig)
	require.NotContains(t, calls, devicemock.MethodAllocFramePool)
	configs, pools, contexts := dev.LiveResources()
	require.Zero(t, configs+pools+contexts)
}

func TestSessionEncodeCreatesNoContext(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	s, err := NewSession(ctx, r, h264HighCodec(1280, 720), hwaccel.EntryPointEncSlice)
	require.NoError(t, err)
	require.Equal(t, StateActive, s.State())
	require.Equal(t, hwaccel.InvalidContextID, s.ContextID())
	require.NotContains(t, opener.Last().Calls(), devicemock.MethodCreateContext)
	require.NoError(t, s.Close(ctx))
}

func TestSessionStageFailuresReleaseEverything(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		method   string
		expected hwaccel.ErrorKind
	}{
		{devicemock.MethodQueryProfiles, hwaccel.ErrUnsupportedCodecOrProfile},
		{devicemock.MethodQueryEntryPoints, hwaccel.ErrUnsupportedCodecOrProfile},
		{devicemock.MethodGetConfigAttribute, hwaccel.ErrConfigCreationFailed},
		{devicemock.MethodCreateConfig, hwaccel.ErrConfigCreationFailed},
		{devicemock.MethodQueryFrameConstraints, hwaccel.ErrDeviceOperationFailed},
		{devicemock.MethodAllocFramePool, hwaccel.ErrAllocationFailure},
		{devicemock.MethodCreateContext, hwaccel.ErrDeviceOperationFailed},
	} {
		t.Run(tc.method, func(t *testing.T) {
			r, opener := newTestRegistry(devicemock.DefaultCapabilities(), func(d *devicemock.Device) {
				d.FailOn(tc.method, fmt.Errorf("injected failure"))
			})

			s, err := NewSession(ctx, r, h264HighCodec(1920, 1080), hwaccel.EntryPointVLD)
			require.Nil(t, s)
			require.ErrorIs(t, err, tc.expected)
			require.Contains(t, err.Error(), "injected failure")

			dev := opener.Last()
			configs, pools, contexts := dev.LiveResources()
			require.Zero(t, configs, "configs")
			require.Zero(t, pools, "pools")
			require.Zero(t, contexts, "contexts")
			require.False(t, dev.IsClosed())

			require.NoError(t, r.Shutdown(ctx))
			require.True(t, dev.IsClosed())
		})
	}
}

func TestSessionUnsupportedPixelFormat(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	cc := h264HighCodec(1920, 1080)
	cc.SwPixelFormat = hwaccel.PixelFormatBGRA
	s, err := NewSession(ctx, r, cc, hwaccel.EntryPointVLD)
	require.Nil(t, s)
	require.ErrorIs(t, err, hwaccel.ErrUnsupportedPixelFormat)
	require.NotContains(t, opener.Last().Calls(), devicemock.MethodGetConfigAttribute)
}

func TestSessionNoDevice(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities(), hwaccel.DefaultDevicePaths()...)
	r := NewRegistry(opener, hwaccel.Config{})

	s, err := NewSession(ctx, r, h264HighCodec(1920, 1080), hwaccel.EntryPointVLD)
	require.Nil(t, s)
	require.ErrorIs(t, err, hwaccel.ErrNoDeviceFound)
}

func TestSessionFramePoolSizeIsFixed(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	for _, size := range [][2]int{{176, 144}, {720, 576}, {1920, 1080}, {3840, 2160}} {
		s, err := NewSession(ctx, r, h264HighCodec(size[0], size[1]), hwaccel.EntryPointVLD)
		require.NoError(t, err)
		require.Equal(t, 32, opener.Last().LastFramePoolParams().Size)
		require.Equal(t, 32, s.FramePool().Size())
		require.NoError(t, s.Close(ctx))
	}
}

func TestSessionCloseCollectsReleaseErrors(t *testing.T) {
	ctx := context.Background()
	r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	s, err := NewSession(ctx, r, h264HighCodec(1920, 1080), hwaccel.EntryPointVLD)
	require.NoError(t, err)

	dev := opener.Last()
	dev.FailOn(devicemock.MethodDestroyContext, fmt.Errorf("context is busy"))
	err = s.Close(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is busy")

	// the remaining resources are still released
	configs, pools, _ := dev.LiveResources()
	require.Zero(t, configs)
	require.Zero(t, pools)
	require.Equal(t, StateDestroyed, s.State())
}

func TestSessionYUV422AndGray(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(devicemock.DefaultCapabilities(), nil)

	for pf, expected := range map[hwaccel.PixelFormat]struct {
		rt hwaccel.RTFormat
		sw hwaccel.PixelFormat
	}{
		hwaccel.PixelFormatYUYV422: {hwaccel.RTFormatYUV422, hwaccel.PixelFormatYUYV422},
		hwaccel.PixelFormatUYVY422: {hwaccel.RTFormatYUV422, hwaccel.PixelFormatYUYV422},
		hwaccel.PixelFormatGray8:   {hwaccel.RTFormatYUV400, hwaccel.PixelFormatGray8},
	} {
		cc := h264HighCodec(640, 480)
		cc.SwPixelFormat = pf
		s, err := NewSession(ctx, r, cc, hwaccel.EntryPointVLD)
		require.NoError(t, err, pf)
		require.Equal(t, expected.rt, s.RTFormat(), pf)
		require.Equal(t, expected.sw, s.SwFormat(), pf)
		require.NoError(t, s.Close(ctx))
	}
}

func TestSessionCloseOutlivesCancelledContexts(t *testing.T) {
	t.Run("setup_context_cancelled", func(t *testing.T) {
		r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)
		defer r.Shutdown(context.Background())

		setupCtx, cancel := context.WithCancel(context.Background())
		s, err := NewSession(setupCtx, r, h264HighCodec(1280, 720), hwaccel.EntryPointVLD)
		require.NoError(t, err)
		cancel()

		require.NoError(t, s.Close(context.Background()))
		configs, pools, contexts := opener.Last().LiveResources()
		require.Zero(t, configs)
		require.Zero(t, pools)
		require.Zero(t, contexts)
	})

	t.Run("close_context_cancelled", func(t *testing.T) {
		r, opener := newTestRegistry(devicemock.DefaultCapabilities(), nil)
		defer r.Shutdown(context.Background())

		s, err := NewSession(context.Background(), r, h264HighCodec(1280, 720), hwaccel.EntryPointVLD)
		require.NoError(t, err)

		closeCtx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.Close(closeCtx))
		require.Equal(t, StateDestroyed, s.State())
		configs, pools, contexts := opener.Last().LiveResources()
		require.Zero(t, configs)
		require.Zero(t, pools)
		require.Zero(t, contexts)
	})
}
