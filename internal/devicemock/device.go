// Package devicemock provides a scriptable in-memory accelerator used to
// exercise the negotiation logic without hardware.
package devicemock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/xaionaro-go/hwaccel"
)

const (
	MethodQueryProfiles         = "QueryProfiles"
	MethodQueryEntryPoints      = "QueryEntryPoints"
	MethodGetConfigAttribute    = "GetConfigAttribute"
	MethodCreateConfig          = "CreateConfig"
	MethodDestroyConfig         = "DestroyConfig"
	MethodQueryFrameConstraints = "QueryFrameConstraints"
	MethodAllocFramePool        = "AllocFramePool"
	MethodFramePoolClose        = "FramePool.Close"
	MethodCreateContext         = "CreateContext"
	MethodDestroyContext        = "DestroyContext"
	MethodClose                 = "Close"
)

// Capabilities is what a Device reports about itself.
type Capabilities struct {
	Profiles    []hwaccel.Profile
	EntryPoints map[hwaccel.Profile][]hwaccel.EntryPoint
	RTFormats   uint32
	Constraints hwaccel.FrameConstraints
}

// DefaultCapabilities describes a typical H.264/HEVC/MPEG-2 capable GPU.
func DefaultCapabilities() Capabilities {
	both := []hwaccel.EntryPoint{hwaccel.EntryPointVLD, hwaccel.EntryPointEncSlice}
	return Capabilities{
		Profiles: []hwaccel.Profile{
			hwaccel.ProfileMPEG2Simple,
			hwaccel.ProfileMPEG2Main,
			hwaccel.ProfileH264Main,
			hwaccel.ProfileH264High,
			hwaccel.ProfileH264ConstrainedBaseline,
			hwaccel.ProfileHEVCMain,
		},
		EntryPoints: map[hwaccel.Profile][]hwaccel.EntryPoint{
			hwaccel.ProfileMPEG2Simple:             {hwaccel.EntryPointVLD},
			hwaccel.ProfileMPEG2Main:               {hwaccel.EntryPointVLD},
			hwaccel.ProfileH264Main:                both,
			hwaccel.ProfileH264High:                both,
			hwaccel.ProfileH264ConstrainedBaseline: both,
			hwaccel.ProfileHEVCMain:                both,
		},
		RTFormats: uint32(hwaccel.RTFormatYUV420 | hwaccel.RTFormatYUV422 | hwaccel.RTFormatYUV400),
		Constraints: hwaccel.FrameConstraints{
			ValidSoftwareFormats: []hwaccel.PixelFormat{
				hwaccel.PixelFormatNV12,
				hwaccel.PixelFormatYUYV422,
				hwaccel.PixelFormatGray8,
			},
			MinWidth:  16,
			MaxWidth:  4096,
			MinHeight: 16,
			MaxHeight: 4096,
		},
	}
}

// Device implements hwaccel.Device. Methods listed in Failures return the
// given error instead of doing anything. Destroy calls fail on a done
// context.
type Device struct {
	locker       sync.Mutex
	path         string
	capabilities Capabilities
	failures     map[string]error
	calls        []string
	nextID       uint32
	liveConfigs  map[hwaccel.ConfigID]struct{}
	liveContexts map[hwaccel.ContextID]struct{}
	livePools    int
	lastPool     *hwaccel.FramePoolParams
	closed       bool
}

var _ hwaccel.Device = (*Device)(nil)

func NewDevice(path string, capabilities Capabilities) *Device {
	return &Device{
		path:         path,
		capabilities: capabilities,
		failures:     map[string]error{},
		liveConfigs:  map[hwaccel.ConfigID]struct{}{},
		liveContexts: map[hwaccel.ContextID]struct{}{},
	}
}

// FailOn makes the given method return err from now on.
func (d *Device) FailOn(method string, err error) *Device {
	d.locker.Lock()
	defer d.locker.Unlock()
	d.failures[method] = err
	return d
}

func (d *Device) Calls() []string {
	d.locker.Lock()
	defer d.locker.Unlock()
	return slices.Clone(d.calls)
}

func (d *Device) IsClosed() bool {
	d.locker.Lock()
	defer d.locker.Unlock()
	return d.closed
}

// LiveResources returns how many configs, frame pools and contexts are
// currently allocated.
func (d *Device) LiveResources() (configs, pools, contexts int) {
	d.locker.Lock()
	defer d.locker.Unlock()
	return len(d.liveConfigs), d.livePools, len(d.liveContexts)
}

func (d *Device) LastFramePoolParams() *hwaccel.FramePoolParams {
	d.locker.Lock()
	defer d.locker.Unlock()
	return d.lastPool
}

func (d *Device) enter(method string) error {
	d.calls = append(d.calls, method)
	if d.closed && method != MethodClose {
		return fmt.Errorf("%s on a closed device", method)
	}
	return d.failures[method]
}

func (d *Device) Path() string {
	return d.path
}

func (d *Device) Close() error {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodClose); err != nil {
		return err
	}
	if d.closed {
		return fmt.Errorf("device %s is already closed", d.path)
	}
	d.closed = true
	return nil
}

func (d *Device) QueryProfiles(ctx context.Context) ([]hwaccel.Profile, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodQueryProfiles); err != nil {
		return nil, err
	}
	return slices.Clone(d.capabilities.Profiles), nil
}

func (d *Device) QueryEntryPoints(ctx context.Context, profile hwaccel.Profile) ([]hwaccel.EntryPoint, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodQueryEntryPoints); err != nil {
		return nil, err
	}
	return slices.Clone(d.capabilities.EntryPoints[profile]), nil
}

func (d *Device) GetConfigAttribute(
	ctx context.Context,
	profile hwaccel.Profile,
	entryPoint hwaccel.EntryPoint,
	attribType hwaccel.ConfigAttribType,
) (uint32, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodGetConfigAttribute); err != nil {
		return 0, err
	}
	if attribType != hwaccel.ConfigAttribRTFormat {
		return hwaccel.AttribNotSupported, nil
	}
	return d.capabilities.RTFormats, nil
}

func (d *Device) CreateConfig(
	ctx context.Context,
	profile hwaccel.Profile,
	entryPoint hwaccel.EntryPoint,
	attribs []hwaccel.ConfigAttrib,
) (hwaccel.ConfigID, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodCreateConfig); err != nil {
		return hwaccel.InvalidConfigID, err
	}
	d.nextID++
	id := hwaccel.ConfigID(d.nextID)
	d.liveConfigs[id] = struct{}{}
	return id, nil
}

func (d *Device) DestroyConfig(ctx context.Context, configID hwaccel.ConfigID) error {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodDestroyConfig); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("DestroyConfig: %w", err)
	}
	if _, ok := d.liveConfigs[configID]; !ok {
		return fmt.Errorf("config %d does not exist", configID)
	}
	delete(d.liveConfigs, configID)
	return nil
}

func (d *Device) QueryFrameConstraints(ctx context.Context, configID hwaccel.ConfigID) (*hwaccel.FrameConstraints, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodQueryFrameConstraints); err != nil {
		return nil, err
	}
	if _, ok := d.liveConfigs[configID]; !ok {
		return nil, fmt.Errorf("config %d does not exist", configID)
	}
	c := d.capabilities.Constraints
	c.ValidSoftwareFormats = slices.Clone(c.ValidSoftwareFormats)
	return &c, nil
}

func (d *Device) AllocFramePool(ctx context.Context, params hwaccel.FramePoolParams) (hwaccel.DeviceFramePool, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodAllocFramePool); err != nil {
		return nil, err
	}
	d.lastPool = &params
	surfaces := make([]hwaccel.SurfaceID, 0, params.Size)
	for range params.Size {
		d.nextID++
		surfaces = append(surfaces, hwaccel.SurfaceID(d.nextID))
	}
	d.livePools++
	return &framePool{device: d, surfaces: surfaces}, nil
}

func (d *Device) CreateContext(
	ctx context.Context,
	configID hwaccel.ConfigID,
	width, height int,
	flags int,
	surfaces []hwaccel.SurfaceID,
) (hwaccel.ContextID, error) {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodCreateContext); err != nil {
		return hwaccel.InvalidContextID, err
	}
	if _, ok := d.liveConfigs[configID]; !ok {
		return hwaccel.InvalidContextID, fmt.Errorf("config %d does not exist", configID)
	}
	d.nextID++
	id := hwaccel.ContextID(d.nextID)
	d.liveContexts[id] = struct{}{}
	return id, nil
}

func (d *Device) DestroyContext(ctx context.Context, contextID hwaccel.ContextID) error {
	d.locker.Lock()
	defer d.locker.Unlock()
	if err := d.enter(MethodDestroyContext); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("DestroyContext: %w", err)
	}
	if _, ok := d.liveContexts[contextID]; !ok {
		return fmt.Errorf("context %d does not exist", contextID)
	}
	delete(d.liveContexts, contextID)
	return nil
}

type framePool struct {
	device   *Device
	surfaces []hwaccel.SurfaceID
	closed   atomic.Bool
}

func (p *framePool) Surfaces() []hwaccel.SurfaceID {
	return p.surfaces
}

func (p *framePool) Close() error {
	p.device.locker.Lock()
	defer p.device.locker.Unlock()
	if err := p.device.enter(MethodFramePoolClose); err != nil {
		return err
	}
	if !p.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("the frame pool is already closed")
	}
	p.device.livePools--
	return nil
}
