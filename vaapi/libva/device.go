//go:build with_libva && linux
// +build with_libva,linux

package libva

/*
#cgo pkg-config: libva libva-drm
#include <stdlib.h>
#include <fcntl.h>
#include <unistd.h>
#include <va/va.h>
#include <va/va_drm.h>

static int hwaccel_open_rdwr(const char *path) {
	return open(path, O_RDWR);
}

static int hwaccel_surface_attrib_int(VASurfaceAttrib *attrib) {
	return attrib->value.value.i;
}

static void hwaccel_surface_attrib_set_int(VASurfaceAttrib *attrib, VASurfaceAttribType type, int value) {
	attrib->type = type;
	attrib->flags = VA_SURFACE_ATTRIB_SETTABLE;
	attrib->value.type = VAGenericValueTypeInteger;
	attrib->value.value.i = value;
}
*/
import "C"

import (
	"context"
	"fmt"
	"math"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/xaionaro-go/hwaccel"
)

func statusError(status C.VAStatus, format string, args ...any) error {
	if status == C.VA_STATUS_SUCCESS {
		return nil
	}
	return errors.Errorf("%s: %s (0x%x)", fmt.Sprintf(format, args...), C.GoString(C.vaErrorStr(status)), int(status))
}

type Opener struct{}

var _ hwaccel.DeviceOpener = (*Opener)(nil)

func NewOpener() *Opener {
	return &Opener{}
}

// OpenDevice opens the DRM node and initializes a VA display on it.
func (o *Opener) OpenDevice(
	ctx context.Context,
	path string,
) (_ret hwaccel.Device, _err error) {
	logger.Tracef(ctx, "OpenDevice(ctx, '%s')", path)
	defer func() { logger.Tracef(ctx, "/OpenDevice(ctx, '%s'): %v", path, _err) }()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	fd, err := C.hwaccel_open_rdwr(cPath)
	if fd < 0 {
		return nil, errors.Wrapf(err, "unable to open '%s'", path)
	}

	display := C.vaGetDisplayDRM(fd)
	if display == nil {
		C.close(fd)
		return nil, errors.Errorf("unable to get a VA display of '%s'", path)
	}

	var major, minor C.int
	if err := statusError(C.vaInitialize(display, &major, &minor), "vaInitialize('%s')", path); err != nil {
		C.close(fd)
		return nil, err
	}
	logger.Debugf(ctx, "opened '%s': VA-API %d.%d, driver: %s",
		path, int(major), int(minor), C.GoString(C.vaQueryVendorString(display)))

	return &Device{
		path:    path,
		fd:      fd,
		display: display,
	}, nil
}

type Device struct {
	path    string
	fd      C.int
	display C.VADisplay
}

var _ hwaccel.Device = (*Device)(nil)

func (d *Device) Path() string {
	return d.path
}

func (d *Device) Close() error {
	var mErr *multierror.Error
	if err := statusError(C.vaTerminate(d.display), "vaTerminate"); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if r, err := C.close(d.fd); r != 0 {
		mErr = multierror.Append(mErr, errors.Wrapf(err, "unable to close '%s'", d.path))
	}
	return mErr.ErrorOrNil()
}

func (d *Device) QueryProfiles(ctx context.Context) ([]hwaccel.Profile, error) {
	profiles := make([]C.VAProfile, int(C.vaMaxNumProfiles(d.display)))
	if len(profiles) == 0 {
		return nil, nil
	}
	var count C.int
	if err := statusError(C.vaQueryConfigProfiles(d.display, &profiles[0], &count), "vaQueryConfigProfiles"); err != nil {
		return nil, err
	}
	result := make([]hwaccel.Profile, 0, int(count))
	for _, p := range profiles[:int(count)] {
		result = append(result, hwaccel.Profile(p))
	}
	return result, nil
}

func (d *Device) QueryEntryPoints(
	ctx context.Context,
	profile hwaccel.Profile,
) ([]hwaccel.EntryPoint, error) {
	entryPoints := make([]C.VAEntrypoint, int(C.vaMaxNumEntrypoints(d.display)))
	if len(entryPoints) == 0 {
		return nil, nil
	}
	var count C.int
	if err := statusError(
		C.vaQueryConfigEntrypoints(d.display, C.VAProfile(profile), &entryPoints[0], &count),
		"vaQueryConfigEntrypoints(%s)", profile,
	); err != nil {
		return nil, err
	}
	result := make([]hwaccel.EntryPoint, 0, int(count))
	for _, ep := range entryPoints[:int(count)] {
		result = append(result, hwaccel.EntryPoint(ep))
	}
	return result, nil
}

func (d *Device) GetConfigAttribute(
	ctx context.Context,
	profile hwaccel.Profile,
	entryPoint hwaccel.EntryPoint,
	attribType hwaccel.ConfigAttribType,
) (uint32, error) {
	attrib := C.VAConfigAttrib{_type: C.VAConfigAttribType(attribType)}
	if err := statusError(
		C.vaGetConfigAttributes(d.display, C.VAProfile(profile), C.VAEntrypoint(entryPoint), &attrib, 1),
		"vaGetConfigAttributes(%s, %s)", profile, entryPoint,
	); err != nil {
		return 0, err
	}
	return uint32(attrib.value), nil
}

func (d *Device) CreateConfig(
	ctx context.Context,
	profile hwaccel.Profile,
	entryPoint hwaccel.EntryPoint,
	attribs []hwaccel.ConfigAttrib,
) (hwaccel.ConfigID, error) {
	cAttribs := make([]C.VAConfigAttrib, 0, len(attribs))
	for _, a := range attribs {
		cAttribs = append(cAttribs, C.VAConfigAttrib{
			_type: C.VAConfigAttribType(a.Type),
			value: C.uint32_t(a.Value),
		})
	}
	var attribsPtr *C.VAConfigAttrib
	if len(cAttribs) > 0 {
		attribsPtr = &cAttribs[0]
	}

	var configID C.VAConfigID
	if err := statusError(
		C.vaCreateConfig(d.display, C.VAProfile(profile), C.VAEntrypoint(entryPoint), attribsPtr, C.int(len(cAttribs)), &configID),
		"vaCreateConfig(%s, %s)", profile, entryPoint,
	); err != nil {
		return hwaccel.InvalidConfigID, err
	}
	return hwaccel.ConfigID(configID), nil
}

func (d *Device) DestroyConfig(ctx context.Context, configID hwaccel.ConfigID) error {
	return statusError(C.vaDestroyConfig(d.display, C.VAConfigID(configID)), "vaDestroyConfig(%d)", configID)
}

// QueryFrameConstraints reports the surface formats and size bounds of
// the config. Bounds the driver does not report are left open.
func (d *Device) QueryFrameConstraints(
	ctx context.Context,
	configID hwaccel.ConfigID,
) (*hwaccel.FrameConstraints, error) {
	var count C.uint
	if err := statusError(
		C.vaQuerySurfaceAttributes(d.display, C.VAConfigID(configID), nil, &count),
		"vaQuerySurfaceAttributes(%d)", configID,
	); err != nil {
		return nil, err
	}
	result := &hwaccel.FrameConstraints{
		MaxWidth:  math.MaxInt32,
		MaxHeight: math.MaxInt32,
	}
	if count == 0 {
		return result, nil
	}

	attribs := make([]C.VASurfaceAttrib, int(count))
	if err := statusError(
		C.vaQuerySurfaceAttributes(d.display, C.VAConfigID(configID), &attribs[0], &count),
		"vaQuerySurfaceAttributes(%d)", configID,
	); err != nil {
		return nil, err
	}

	for idx := range attribs[:int(count)] {
		attrib := &attribs[idx]
		value := int(C.hwaccel_surface_attrib_int(attrib))
		switch attrib._type {
		case C.VASurfaceAttribPixelFormat:
			pf := PixelFormatFromFourCC(uint32(value))
			if pf == hwaccel.PixelFormatNone {
				logger.Tracef(ctx, "skipping surface format %s", FourCCString(uint32(value)))
				continue
			}
			result.ValidSoftwareFormats = append(result.ValidSoftwareFormats, pf)
		case C.VASurfaceAttribMinWidth:
			result.MinWidth = value
		case C.VASurfaceAttribMaxWidth:
			result.MaxWidth = value
		case C.VASurfaceAttribMinHeight:
			result.MinHeight = value
		case C.VASurfaceAttribMaxHeight:
			result.MaxHeight = value
		}
	}
	return result, nil
}

func (d *Device) AllocFramePool(
	ctx context.Context,
	params hwaccel.FramePoolParams,
) (hwaccel.DeviceFramePool, error) {
	if params.Size <= 0 {
		return nil, errors.Errorf("invalid frame pool size %d", params.Size)
	}
	fourcc, ok := PixelFormatFourCC(params.SoftwareFormat)
	if !ok {
		return nil, errors.Errorf("pixel format %s has no fourcc", params.SoftwareFormat)
	}
	var attrib C.VASurfaceAttrib
	C.hwaccel_surface_attrib_set_int(&attrib, C.VASurfaceAttribPixelFormat, C.int(fourcc))

	surfaces := make([]C.VASurfaceID, params.Size)
	if err := statusError(
		C.vaCreateSurfaces(
			d.display,
			C.uint(params.RTFormat),
			C.uint(params.Width), C.uint(params.Height),
			&surfaces[0], C.uint(len(surfaces)),
			&attrib, 1,
		),
		"vaCreateSurfaces(%s, %s, %dx%d, %d)", params.RTFormat, params.SoftwareFormat, params.Width, params.Height, params.Size,
	); err != nil {
		return nil, err
	}
	return &framePool{
		display:  d.display,
		surfaces: surfaces,
	}, nil
}

func (d *Device) CreateContext(
	ctx context.Context,
	configID hwaccel.ConfigID,
	width, height int,
	flags int,
	surfaces []hwaccel.SurfaceID,
) (hwaccel.ContextID, error) {
	cSurfaces := make([]C.VASurfaceID, 0, len(surfaces))
	for _, s := range surfaces {
		cSurfaces = append(cSurfaces, C.VASurfaceID(s))
	}
	var surfacesPtr *C.VASurfaceID
	if len(cSurfaces) > 0 {
		surfacesPtr = &cSurfaces[0]
	}

	var contextID C.VAContextID
	if err := statusError(
		C.vaCreateContext(
			d.display,
			C.VAConfigID(configID),
			C.int(width), C.int(height),
			C.int(flags),
			surfacesPtr, C.int(len(cSurfaces)),
			&contextID,
		),
		"vaCreateContext(%d, %dx%d)", configID, width, height,
	); err != nil {
		return hwaccel.InvalidContextID, err
	}
	return hwaccel.ContextID(contextID), nil
}

func (d *Device) DestroyContext(ctx context.Context, contextID hwaccel.ContextID) error {
	return statusError(C.vaDestroyContext(d.display, C.VAContextID(contextID)), "vaDestroyContext(%d)", contextID)
}

type framePool struct {
	display  C.VADisplay
	surfaces []C.VASurfaceID
}

func (p *framePool) Surfaces() []hwaccel.SurfaceID {
	result := make([]hwaccel.SurfaceID, 0, len(p.surfaces))
	for _, s := range p.surfaces {
		result = append(result, hwaccel.SurfaceID(s))
	}
	return result
}

func (p *framePool) Close() error {
	if len(p.surfaces) == 0 {
		return nil
	}
	err := statusError(
		C.vaDestroySurfaces(p.display, &p.surfaces[0], C.int(len(p.surfaces))),
		"vaDestroySurfaces(%d)", len(p.surfaces),
	)
	p.surfaces = nil
	return err
}
