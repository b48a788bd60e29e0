package vaapi

import (
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
)

// YUV420P is never offered to the device directly; it is swapped for its
// semi-planar equivalent first.
var ioFormatSubstitutes = map[hwaccel.PixelFormat]hwaccel.PixelFormat{
	hwaccel.PixelFormatYUV420P: hwaccel.PixelFormatNV12,
}

var rtFormatTable = map[hwaccel.PixelFormat]hwaccel.RTFormat{
	hwaccel.PixelFormatNV12:    hwaccel.RTFormatYUV420,
	hwaccel.PixelFormatYUV422P: hwaccel.RTFormatYUV422,
	hwaccel.PixelFormatUYVY422: hwaccel.RTFormatYUV422,
	hwaccel.PixelFormatYUYV422: hwaccel.RTFormatYUV422,
	hwaccel.PixelFormatGray8:   hwaccel.RTFormatYUV400,
}

// IOFormat returns the pixel format a session negotiates for, given the
// codec's software pixel format.
func IOFormat(swPixelFormat hwaccel.PixelFormat) hwaccel.PixelFormat {
	if substitute, ok := ioFormatSubstitutes[swPixelFormat]; ok {
		return substitute
	}
	return swPixelFormat
}

// SelectFormat maps a pixel format to its surface format class.
func SelectFormat(
	pixelFormat hwaccel.PixelFormat,
) (hwaccel.RTFormat, error) {
	rt, ok := rtFormatTable[pixelFormat]
	if !ok {
		return 0, hwaccel.NewError(
			hwaccel.ErrUnsupportedPixelFormat,
			"select format",
			fmt.Errorf("unsupported pixel format: %s", pixelFormat),
		)
	}
	return rt, nil
}

// CreateConfig checks that the device supports the surface format class for
// the profile/entry point and creates a config for it.
func CreateConfig(
	ctx context.Context,
	dev hwaccel.Device,
	profile hwaccel.Profile,
	entryPoint hwaccel.EntryPoint,
	rtFormat hwaccel.RTFormat,
) (_ret hwaccel.ConfigID, _err error) {
	logger.Tracef(ctx, "CreateConfig(ctx, %s, %s, %s)", profile, entryPoint, rtFormat)
	defer func() {
		logger.Tracef(ctx, "/CreateConfig(ctx, %s, %s, %s): %d %v", profile, entryPoint, rtFormat, _ret, _err)
	}()

	failed := func(err error) error {
		return hwaccel.NewError(hwaccel.ErrConfigCreationFailed, "create config", err)
	}

	value, err := dev.GetConfigAttribute(ctx, profile, entryPoint, hwaccel.ConfigAttribRTFormat)
	if err != nil {
		return hwaccel.InvalidConfigID, failed(fmt.Errorf("unable to get the RT format attribute: %w", err))
	}
	if value == hwaccel.AttribNotSupported || value&uint32(rtFormat) == 0 {
		return hwaccel.InvalidConfigID, failed(fmt.Errorf("unsupported RT format %s (the device reports 0x%08X)", rtFormat, value))
	}

	configID, err := dev.CreateConfig(ctx, profile, entryPoint, []hwaccel.ConfigAttrib{{
		Type:  hwaccel.ConfigAttribRTFormat,
		Value: uint32(rtFormat),
	}})
	if err != nil {
		return hwaccel.InvalidConfigID, failed(err)
	}
	return configID, nil
}

// ResolveSoftwareFormat picks the device-native format for the desired one
// and validates the frame size against the device bounds (inclusive).
// An exact match wins over a structural one.
func ResolveSoftwareFormat(
	ctx context.Context,
	dev hwaccel.Device,
	configID hwaccel.ConfigID,
	desired hwaccel.PixelFormat,
	width, height int,
) (_ret hwaccel.PixelFormat, _constraints *hwaccel.FrameConstraints, _err error) {
	logger.Tracef(ctx, "ResolveSoftwareFormat(ctx, %d, %s, %dx%d)", configID, desired, width, height)
	defer func() {
		logger.Tracef(ctx, "/ResolveSoftwareFormat(ctx, %d, %s, %dx%d): %s %v", configID, desired, width, height, _ret, _err)
	}()

	constraints, err := dev.QueryFrameConstraints(ctx, configID)
	if err != nil {
		return hwaccel.PixelFormatNone, nil, hwaccel.NewError(
			hwaccel.ErrDeviceOperationFailed,
			"query frame constraints",
			fmt.Errorf("failed to get constraints: %w", err),
		)
	}
	logger.Tracef(ctx, "constraints: %s", spew.Sdump(constraints))

	swFormat := matchSoftwareFormat(desired, constraints.ValidSoftwareFormats)
	if swFormat == hwaccel.PixelFormatNone {
		return hwaccel.PixelFormatNone, constraints, hwaccel.NewError(
			hwaccel.ErrPixelFormatUnsupported,
			"resolve software format",
			fmt.Errorf("VAAPI hardware does not support pixel format: %s", desired),
		)
	}

	if width < constraints.MinWidth || width > constraints.MaxWidth ||
		height < constraints.MinHeight || height > constraints.MaxHeight {
		return hwaccel.PixelFormatNone, constraints, hwaccel.NewError(
			hwaccel.ErrSizeUnsupported,
			"validate size",
			fmt.Errorf(
				"VAAPI hardware does not support image size %dx%d (constraints: width %d-%d height %d-%d)",
				width, height,
				constraints.MinWidth, constraints.MaxWidth,
				constraints.MinHeight, constraints.MaxHeight,
			),
		)
	}

	return swFormat, constraints, nil
}

func matchSoftwareFormat(
	desired hwaccel.PixelFormat,
	valid []hwaccel.PixelFormat,
) hwaccel.PixelFormat {
	if desired == hwaccel.PixelFormatNone {
		return hwaccel.PixelFormatNone
	}
	for _, candidate := range valid {
		if candidate == desired {
			return candidate
		}
	}
	for _, candidate := range valid {
		if candidate.IsStructurallyEqual(desired) {
			return candidate
		}
	}
	return hwaccel.PixelFormatNone
}
