package vaapi

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/internal"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Registry lazily opens the single accelerator device and shares it
// between sessions by reference counting. The registry itself keeps one
// reference until Shutdown, so sessions releasing their references never
// close the device.
type Registry struct {
	locker xsync.Mutex
	opener hwaccel.DeviceOpener
	config hwaccel.Config
	shared *sharedDevice
}

type sharedDevice struct {
	hwaccel.Device
	refCount int

	// registryHeld tells whether one of refCount is the registry's own
	// reference (dropped by Shutdown).
	registryHeld bool
}

func NewRegistry(
	opener hwaccel.DeviceOpener,
	cfg hwaccel.Config,
) *Registry {
	return &Registry{
		opener: opener,
		config: cfg.WithDefaults(),
	}
}

// Acquire returns a new reference to the shared device, probing for one
// if none is open.
func (r *Registry) Acquire(
	ctx context.Context,
) (_ret *DeviceRef, _err error) {
	logger.Tracef(ctx, "Acquire")
	defer func() { logger.Tracef(ctx, "/Acquire: %v", _err) }()

	r.locker.ManualLock(ctx)
	defer r.locker.ManualUnlock(ctx)

	switch {
	case r.shared == nil:
		dev, err := r.probeLocked(ctx)
		if err != nil {
			return nil, err
		}
		r.shared = &sharedDevice{
			Device:       dev,
			refCount:     1, // the registry's own reference
			registryHeld: true,
		}
	case !r.shared.registryHeld:
		// shut down while sessions still held it, so it is still open
		logger.Debugf(ctx, "reusing device %s that is still referenced after Shutdown", r.shared.Path())
		r.shared.refCount++
		r.shared.registryHeld = true
	}

	return r.newRefLocked(ctx, r.shared), nil
}

func (r *Registry) probeLocked(
	ctx context.Context,
) (hwaccel.Device, error) {
	var mErr *multierror.Error
	for _, path := range r.config.DevicePaths {
		logger.Debugf(ctx, "trying device: %s", path)
		dev, err := r.opener.OpenDevice(ctx, path)
		if err != nil {
			logger.Debugf(ctx, "failed to create a context for device %s: %v", path, err)
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", path, err))
			continue
		}
		logger.Infof(ctx, "successful context creation for device: %s", path)
		return dev, nil
	}
	logger.Errorf(ctx, "failed to find suitable VAAPI device")
	return nil, hwaccel.NewError(hwaccel.ErrNoDeviceFound, "probe", mErr.ErrorOrNil())
}

func (r *Registry) newRefLocked(
	ctx context.Context,
	d *sharedDevice,
) *DeviceRef {
	d.refCount++
	ref := &DeviceRef{
		registry: r,
		device:   d,
	}
	internal.ReportLeakOnFinalize(ctx, ref, fmt.Sprintf("a reference to device %s", d.Path()))
	return ref
}

func (r *Registry) unrefLocked(
	ctx context.Context,
	d *sharedDevice,
) error {
	internal.Assertf(ctx, d.refCount > 0, "reference count underflow on device %s", d.Path())
	d.refCount--
	if d.refCount > 0 {
		return nil
	}
	if r.shared == d {
		r.shared = nil
	}
	logger.Debugf(ctx, "closing device %s", d.Path())
	if err := d.Close(); err != nil {
		return fmt.Errorf("unable to close device %s: %w", d.Path(), err)
	}
	return nil
}

// Shutdown drops the registry's own reference. The device is closed right
// away unless some session still holds a reference, in which case it is
// closed when that reference is released. A later Acquire reuses the
// device if it is still open and probes anew otherwise.
func (r *Registry) Shutdown(
	ctx context.Context,
) (_err error) {
	logger.Debugf(ctx, "Shutdown")
	defer func() { logger.Debugf(ctx, "/Shutdown: %v", _err) }()

	r.locker.ManualLock(ctx)
	defer r.locker.ManualUnlock(ctx)

	d := r.shared
	if d == nil || !d.registryHeld {
		return nil
	}
	d.registryHeld = false
	if d.refCount > 1 {
		logger.Warnf(ctx, "shutting down while %d session reference(s) to %s are still held", d.refCount-1, d.Path())
	}
	return r.unrefLocked(ctx, d)
}

// DevicePath returns the path of the currently open device, if any.
func (r *Registry) DevicePath(ctx context.Context) (string, bool) {
	return xsync.DoR2(ctx, &r.locker, func() (string, bool) {
		if r.shared == nil {
			return "", false
		}
		return r.shared.Path(), true
	})
}

// DeviceRef is an owned reference to the shared device.
type DeviceRef struct {
	registry *Registry
	device   *sharedDevice
	released bool
}

func (ref *DeviceRef) Device() hwaccel.Device {
	return ref.device.Device
}

func (ref *DeviceRef) Path() string {
	return ref.device.Path()
}

func (ref *DeviceRef) IsReleased() bool {
	return xsync.DoR1(context.Background(), &ref.registry.locker, func() bool {
		return ref.released
	})
}

// Clone returns another independent reference to the same device.
func (ref *DeviceRef) Clone(
	ctx context.Context,
) (*DeviceRef, error) {
	r := ref.registry
	r.locker.ManualLock(ctx)
	defer r.locker.ManualUnlock(ctx)
	if ref.released {
		return nil, hwaccel.NewError(hwaccel.ErrAllocationFailure, "clone device reference", fmt.Errorf("the reference is already released"))
	}
	return r.newRefLocked(ctx, ref.device), nil
}

// Release drops the reference; releasing twice is a no-op.
func (ref *DeviceRef) Release(
	ctx context.Context,
) {
	ctx = belt.WithField(xcontext.DetachDone(ctx), "device", ref.device.Path())
	r := ref.registry
	r.locker.ManualLock(ctx)
	defer r.locker.ManualUnlock(ctx)
	if ref.released {
		return
	}
	ref.released = true
	if err := r.unrefLocked(ctx, ref.device); err != nil {
		logger.Errorf(ctx, "%v", err)
	}
}
