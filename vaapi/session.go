package vaapi

import (
	"context"
	"fmt"

	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/internal"
	"github.com/xaionaro-go/xcontext"
)

// Session holds the hardware resources of one accelerated codec instance.
// A Session returned by NewSession is always fully constructed.
type Session struct {
	entryPoint hwaccel.EntryPoint
	ioFormat   hwaccel.PixelFormat
	swFormat   hwaccel.PixelFormat
	rtFormat   hwaccel.RTFormat
	width      int
	height     int
	profile    hwaccel.Profile
	configID   hwaccel.ConfigID
	contextID  hwaccel.ContextID
	framePool  *FramePool
	deviceRef  *DeviceRef

	state       State
	closer      *astikit.Closer
	releaseCtx  context.Context
	releaseErrs *multierror.Error
}

// NewSession runs the whole negotiation for the codec. On any failure
// everything acquired so far is released in reverse order and nil is
// returned.
func NewSession(
	ctx context.Context,
	registry *Registry,
	cc *hwaccel.CodecContext,
	entryPoint hwaccel.EntryPoint,
) (_ret *Session, _err error) {
	ctx = belt.WithField(ctx, "entry_point", entryPoint.String())
	ctx = belt.WithField(ctx, "codec", cc.CodecID.String())
	logger.Debugf(ctx, "NewSession")
	defer func() { logger.Debugf(ctx, "/NewSession: %v", _err) }()

	s := &Session{
		entryPoint: entryPoint,
		ioFormat:   IOFormat(cc.SwPixelFormat),
		swFormat:   hwaccel.PixelFormatNone,
		width:      cc.CodedWidth,
		height:     cc.CodedHeight,
		profile:    hwaccel.ProfileNone,
		configID:   hwaccel.InvalidConfigID,
		contextID:  hwaccel.InvalidContextID,
		state:      StateIdle,
		closer:     astikit.NewCloser(),
	}
	defer func() {
		if _err != nil {
			logger.Errorf(ctx, "unable to set up the session (reached state '%s'): %v", s.state, _err)
			if err := s.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to release the partially built session: %v", err)
			}
		}
	}()

	if err := s.setup(ctx, registry, cc); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) setState(ctx context.Context, next State) {
	internal.Assertf(ctx, next > s.state, "invalid session state transition %s -> %s", s.state, next)
	logger.Tracef(ctx, "session state: %s -> %s", s.state, next)
	s.state = next
}

// onRelease records a release action; the actions run in reverse order on
// Close and get the context Close was called with.
func (s *Session) onRelease(
	description string,
	release func(ctx context.Context) error,
) {
	s.closer.Add(func() {
		ctx := s.releaseCtx
		logger.Tracef(ctx, "releasing %s", description)
		if err := release(ctx); err != nil {
			logger.Errorf(ctx, "unable to release %s: %v", description, err)
			s.releaseErrs = multierror.Append(s.releaseErrs, fmt.Errorf("%s: %w", description, err))
		}
	})
}

func (s *Session) setup(
	ctx context.Context,
	registry *Registry,
	cc *hwaccel.CodecContext,
) error {
	deviceRef, err := registry.Acquire(ctx)
	if err != nil {
		return err
	}
	s.deviceRef = deviceRef
	s.onRelease("the device reference", func(ctx context.Context) error {
		deviceRef.Release(ctx)
		s.deviceRef = nil
		return nil
	})
	s.setState(ctx, StateDeviceBound)
	dev := deviceRef.Device()
	ctx = belt.WithField(ctx, "device", dev.Path())

	s.profile, err = NegotiateProfile(ctx, dev, cc.CodecID, cc.Profile, s.entryPoint)
	if err != nil {
		return err
	}
	s.setState(ctx, StateProfileSelected)

	s.rtFormat, err = SelectFormat(s.ioFormat)
	if err != nil {
		return err
	}

	configID, err := CreateConfig(ctx, dev, s.profile, s.entryPoint, s.rtFormat)
	if err != nil {
		return err
	}
	s.configID = configID
	s.onRelease(fmt.Sprintf("config %d", configID), func(ctx context.Context) error {
		s.configID = hwaccel.InvalidConfigID
		return dev.DestroyConfig(ctx, configID)
	})
	s.setState(ctx, StateConfigCreated)

	s.swFormat, _, err = ResolveSoftwareFormat(ctx, dev, configID, s.ioFormat, s.width, s.height)
	if err != nil {
		return err
	}
	s.setState(ctx, StateConstraintsValidated)

	framePool, err := NewFramePool(ctx, dev, hwaccel.FramePoolParams{
		RTFormat:       s.rtFormat,
		SoftwareFormat: s.swFormat,
		Width:          s.width,
		Height:         s.height,
		Size:           FramePoolSize,
	})
	if err != nil {
		return err
	}
	s.framePool = framePool
	s.onRelease("the frame pool", func(ctx context.Context) error {
		s.framePool = nil
		return framePool.Close()
	})
	s.setState(ctx, StateFramePoolAllocated)

	if s.entryPoint == hwaccel.EntryPointVLD {
		contextID, err := dev.CreateContext(
			ctx,
			configID,
			s.width, s.height,
			hwaccel.ContextFlagProgressive,
			framePool.Surfaces(),
		)
		if err != nil {
			return hwaccel.NewError(hwaccel.ErrDeviceOperationFailed, "create context", err)
		}
		s.contextID = contextID
		s.onRelease(fmt.Sprintf("context %d", contextID), func(ctx context.Context) error {
			s.contextID = hwaccel.InvalidContextID
			return dev.DestroyContext(ctx, contextID)
		})
	}
	s.setState(ctx, StateExecutionContextCreated)

	logger.Debugf(ctx, "negotiated %s/%s: %s -> %s (%s) %dx%d",
		s.profile, s.entryPoint, s.ioFormat, s.swFormat, s.rtFormat, s.width, s.height)
	return nil
}

// Close releases everything the session holds, in reverse acquisition
// order. Calling it again is a no-op.
func (s *Session) Close(ctx context.Context) (_err error) {
	ctx = xcontext.DetachDone(ctx)
	logger.Tracef(ctx, "Close")
	defer func() { logger.Tracef(ctx, "/Close: %v", _err) }()
	if s == nil || s.state == StateDestroyed {
		return nil
	}
	s.releaseCtx = ctx
	if err := s.closer.Close(); err != nil {
		logger.Errorf(ctx, "the release stack reported: %v", err)
	}
	s.closer = astikit.NewCloser()
	s.state = StateDestroyed
	return s.releaseErrs.ErrorOrNil()
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) EntryPoint() hwaccel.EntryPoint {
	return s.entryPoint
}

func (s *Session) Profile() hwaccel.Profile {
	return s.profile
}

func (s *Session) IOFormat() hwaccel.PixelFormat {
	return s.ioFormat
}

func (s *Session) SwFormat() hwaccel.PixelFormat {
	return s.swFormat
}

func (s *Session) RTFormat() hwaccel.RTFormat {
	return s.rtFormat
}

func (s *Session) Size() (width, height int) {
	return s.width, s.height
}

func (s *Session) ConfigID() hwaccel.ConfigID {
	return s.configID
}

func (s *Session) ContextID() hwaccel.ContextID {
	return s.contextID
}

func (s *Session) FramePool() *FramePool {
	return s.framePool
}

func (s *Session) DeviceRef() *DeviceRef {
	return s.deviceRef
}
