//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/codecprofile"
	"github.com/xaionaro-go/hwaccel/vaapi"
)

// Codec is an opened libavcodec codec running on the negotiated VAAPI
// device.
type Codec struct {
	codec                 *astiav.Codec
	codecContext          *astiav.CodecContext
	hardwareDeviceContext *astiav.HardwareDeviceContext
	hardwareFramesContext *astiav.HardwareFramesContext
	acceleration          *hwaccel.CodecContext
	closer                *astikit.Closer
}

func (c *Codec) Codec() *astiav.Codec {
	return c.codec
}

func (c *Codec) CodecContext() *astiav.CodecContext {
	return c.codecContext
}

func (c *Codec) HardwareDeviceContext() *astiav.HardwareDeviceContext {
	return c.hardwareDeviceContext
}

// Acceleration returns the negotiation state attached to the codec.
func (c *Codec) Acceleration() *hwaccel.CodecContext {
	return c.acceleration
}

func (c *Codec) Close() error {
	return c.closer.Close()
}

func allocCodec(
	ctx context.Context,
	codec *astiav.Codec,
	codecParameters *astiav.CodecParameters,
) (*Codec, error) {
	if codecParameters.MediaType() != astiav.MediaTypeVideo {
		return nil, fmt.Errorf("hardware acceleration is supported only for video streams")
	}

	c := &Codec{
		codec:  codec,
		closer: astikit.NewCloser(),
	}
	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return nil, fmt.Errorf("unable to allocate codec context")
	}
	c.closer.Add(c.codecContext.Free)

	if err := codecParameters.ToCodecContext(c.codecContext); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("codecParameters.ToCodecContext(...) returned error: %w", err)
	}

	if frameRate := codecParameters.FrameRate(); frameRate.Num() != 0 {
		c.codecContext.SetFramerate(frameRate)
	}
	return c, nil
}

// NewDecoder opens a decoder that decodes into device surfaces of the
// device negotiated by module.
func NewDecoder(
	ctx context.Context,
	module *vaapi.Module,
	codecName string,
	codecParameters *astiav.CodecParameters,
) (_ret *Codec, _err error) {
	ctx = belt.WithField(ctx, "codec_name", codecName)
	logger.Debugf(ctx, "NewDecoder")
	defer func() { logger.Debugf(ctx, "/NewDecoder: %v", _err) }()

	var codec *astiav.Codec
	if codecName != "" {
		codec = astiav.FindDecoderByName(codecName)
	} else {
		codec = astiav.FindDecoder(codecParameters.CodecID())
	}
	if codec == nil {
		return nil, fmt.Errorf("unable to find a decoder using name '%s' or codec ID %v", codecName, codecParameters.CodecID())
	}

	c, err := allocCodec(ctx, codec, codecParameters)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	c.acceleration = NewCodecContext(codec.Name(), c.codecContext)
	if err := module.SetupDecode(ctx, c.acceleration); err != nil {
		return nil, fmt.Errorf("unable to set up VAAPI decoding: %w", err)
	}
	c.closer.Add(func() {
		module.TeardownDecode(ctx, c.acceleration)
	})
	session := c.acceleration.HWAccel.(*vaapi.Session)

	if err := c.openDevice(ctx, session.DeviceRef().Path()); err != nil {
		return nil, err
	}
	c.codecContext.SetHardwareDeviceContext(c.hardwareDeviceContext)
	c.codecContext.SetThreadCount(c.acceleration.ThreadCount)
	c.codecContext.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		for _, pf := range pfs {
			if pf == astiav.PixelFormatVaapi {
				return pf
			}
		}

		logger.Errorf(ctx, "unable to find appropriate pixel format")
		return astiav.PixelFormatNone
	})

	if err := c.codecContext.Open(c.codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}
	return c, nil
}

// NewEncoder opens the VAAPI encoder of the codec in codecParameters,
// configured by profileCfg.
func NewEncoder(
	ctx context.Context,
	module *vaapi.Module,
	codecParameters *astiav.CodecParameters,
	profileCfg codecprofile.Config,
) (_ret *Codec, _err error) {
	codecID := CodecIDFromAstiav(codecParameters.CodecID())
	profile, ok := codecprofile.ForCodec(codecID)
	if profileCfg.Codec != "" {
		profile, ok = codecprofile.Lookup(profileCfg.Codec)
	}
	if !ok {
		return nil, fmt.Errorf("no VAAPI encoder is known for codec %s", codecID)
	}

	ctx = belt.WithField(ctx, "codec_name", profile.Name())
	logger.Debugf(ctx, "NewEncoder")
	defer func() { logger.Debugf(ctx, "/NewEncoder: %v", _err) }()

	codec := astiav.FindEncoderByName(profile.Name())
	if codec == nil {
		return nil, fmt.Errorf("unable to find encoder '%s'", profile.Name())
	}

	c, err := allocCodec(ctx, codec, codecParameters)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	if frameRate := codecParameters.FrameRate(); frameRate.Num() != 0 {
		c.codecContext.SetTimeBase(astiav.NewRational(frameRate.Den(), frameRate.Num()))
	} else {
		c.codecContext.SetTimeBase(astiav.NewRational(1, 25))
	}

	c.acceleration = NewCodecContext(profile.Name(), c.codecContext)
	if profileCfg.Profile != "" {
		hint, err := codecprofile.ProfileHint(profile, profileCfg)
		if err != nil {
			return nil, err
		}
		c.acceleration.Profile = hint
	}
	if err := module.SetupEncode(ctx, c.acceleration); err != nil {
		return nil, fmt.Errorf("unable to set up VAAPI encoding: %w", err)
	}
	c.closer.Add(func() {
		module.TeardownEncode(ctx, c.acceleration)
	})
	deviceRef := c.acceleration.Opaque.(*vaapi.DeviceRef)

	if err := c.openDevice(ctx, deviceRef.Path()); err != nil {
		return nil, err
	}

	c.hardwareFramesContext = astiav.AllocHardwareFramesContext(c.hardwareDeviceContext)
	if c.hardwareFramesContext == nil {
		return nil, fmt.Errorf("unable to allocate hardware frames context")
	}
	c.closer.Add(c.hardwareFramesContext.Free)
	c.hardwareFramesContext.SetHardwarePixelFormat(astiav.PixelFormatVaapi)
	c.hardwareFramesContext.SetSoftwarePixelFormat(PixelFormatToAstiav(c.acceleration.SwPixelFormat))
	c.hardwareFramesContext.SetWidth(c.acceleration.CodedWidth)
	c.hardwareFramesContext.SetHeight(c.acceleration.CodedHeight)
	c.hardwareFramesContext.SetInitialPoolSize(vaapi.FramePoolSize)
	if err := c.hardwareFramesContext.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize hardware frames context: %w", err)
	}
	c.codecContext.SetHardwareFramesContext(c.hardwareFramesContext)
	c.codecContext.SetPixelFormat(astiav.PixelFormatVaapi)

	opts, err := profile.Open(ctx, profileCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to apply the codec profile: %w", err)
	}
	dict, err := NewDictionary(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer dict.Free()

	if err := c.codecContext.Open(c.codec, dict); err != nil {
		return nil, fmt.Errorf("unable to open codec context: %w", err)
	}
	return c, nil
}

func (c *Codec) openDevice(
	ctx context.Context,
	path string,
) error {
	logger.Debugf(ctx, "opening VAAPI device '%s' in libavutil", path)
	hardwareDeviceContext, err := astiav.CreateHardwareDeviceContext(
		astiav.HardwareDeviceTypeVAAPI,
		path,
		nil,
		0,
	)
	if err != nil {
		return fmt.Errorf("unable to create hardware device context: %w", err)
	}
	c.hardwareDeviceContext = hardwareDeviceContext
	c.closer.Add(c.hardwareDeviceContext.Free)
	return nil
}
