// Package vaapi negotiates VAAPI acceleration sessions for codec
// instances of a transcoding pipeline and holds their device resources.
package vaapi

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
)

// Module is the entry point for the pipeline: it attaches acceleration
// sessions to codec contexts and detaches them.
type Module struct {
	registry *Registry
}

func NewModule(
	opener hwaccel.DeviceOpener,
	cfg hwaccel.Config,
) *Module {
	return &Module{
		registry: NewRegistry(opener, cfg),
	}
}

func (m *Module) Registry() *Registry {
	return m.registry
}

// SetupDecode attaches a decode session to the codec. On success the codec
// takes its frame buffers from the session frame pool and runs
// single-threaded.
func (m *Module) SetupDecode(
	ctx context.Context,
	cc *hwaccel.CodecContext,
) (_err error) {
	ctx = belt.WithField(ctx, "codec_name", cc.CodecName)
	logger.Debugf(ctx, "SetupDecode")
	defer func() { logger.Debugf(ctx, "/SetupDecode: %v", _err) }()

	if cc.HWAccel != nil {
		return hwaccel.NewError(hwaccel.ErrAlreadyAttached, "attach decode session", fmt.Errorf("the codec context already has a hardware acceleration session attached"))
	}

	s, err := NewSession(ctx, m.registry, cc, hwaccel.EntryPointVLD)
	if err != nil {
		return err
	}

	cc.HWAccel = s
	cc.HWFrames = s.FramePool()
	cc.BufferAllocator = &bufferAllocator{
		pool:            s.FramePool(),
		previous:        cc.BufferAllocator,
		directRendering: cc.Capabilities.Has(hwaccel.CodecCapabilityDirectRendering),
	}
	cc.ThreadSafeCallbacks = false
	cc.SwPixelFormat = s.SwFormat()
	cc.ThreadCount = 1
	return nil
}

// TeardownDecode releases the session attached by SetupDecode. It is safe
// to call on a codec context that has no session (or had a failed setup).
func (m *Module) TeardownDecode(
	ctx context.Context,
	cc *hwaccel.CodecContext,
) {
	logger.Debugf(ctx, "TeardownDecode")
	defer func() { logger.Debugf(ctx, "/TeardownDecode") }()

	if a, ok := cc.BufferAllocator.(*bufferAllocator); ok {
		cc.BufferAllocator = a.previous
	}
	cc.HWFrames = nil

	s, ok := cc.HWAccel.(*Session)
	if !ok {
		return
	}
	cc.HWAccel = nil
	if err := s.Close(ctx); err != nil {
		logger.Errorf(ctx, "unable to close the decode session: %v", err)
	}
}

// SetupEncode negotiates an encode session and exports only a reference to
// its device into cc.Opaque; the session itself is released right away.
func (m *Module) SetupEncode(
	ctx context.Context,
	cc *hwaccel.CodecContext,
) (_err error) {
	ctx = belt.WithField(ctx, "codec_name", cc.CodecName)
	logger.Debugf(ctx, "SetupEncode")
	defer func() { logger.Debugf(ctx, "/SetupEncode: %v", _err) }()

	if cc.Opaque != nil {
		return hwaccel.NewError(hwaccel.ErrAlreadyAttached, "attach encode device", fmt.Errorf("the codec context already has a device reference attached"))
	}

	s, err := NewSession(ctx, m.registry, cc, hwaccel.EntryPointEncSlice)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the encode session: %v", err)
		}
	}()

	ref, err := s.DeviceRef().Clone(ctx)
	if err != nil {
		return hwaccel.NewError(hwaccel.ErrAllocationFailure, "export device reference", err)
	}
	cc.Opaque = ref
	cc.SwPixelFormat = s.SwFormat()
	return nil
}

// TeardownEncode releases the device reference exported by SetupEncode.
func (m *Module) TeardownEncode(
	ctx context.Context,
	cc *hwaccel.CodecContext,
) {
	logger.Debugf(ctx, "TeardownEncode")
	defer func() { logger.Debugf(ctx, "/TeardownEncode") }()

	ref, ok := cc.Opaque.(*DeviceRef)
	if !ok {
		return
	}
	cc.Opaque = nil
	ref.Release(ctx)
}

// Shutdown releases the device once all sessions are torn down.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.registry.Shutdown(ctx)
}
