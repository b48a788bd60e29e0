package hwaccel

import (
	"context"
	"io"
)

type ConfigID uint32
type ContextID uint32
type SurfaceID uint32

const (
	InvalidID = ^uint32(0)

	InvalidConfigID  = ConfigID(InvalidID)
	InvalidContextID = ContextID(InvalidID)
)

type ConfigAttribType int

const (
	ConfigAttribRTFormat = ConfigAttribType(0)
)

// AttribNotSupported is the value the device reports for an attribute it
// does not implement.
const AttribNotSupported = uint32(0x80000000)

type ConfigAttrib struct {
	Type  ConfigAttribType
	Value uint32
}

// FrameConstraints is what the device accepts for frames of a given
// config.
type FrameConstraints struct {
	ValidSoftwareFormats []PixelFormat
	MinWidth             int
	MaxWidth             int
	MinHeight            int
	MaxHeight            int
}

type FramePoolParams struct {
	RTFormat       RTFormat
	SoftwareFormat PixelFormat
	Width          int
	Height         int
	Size           int
}

// ContextFlagProgressive requests a progressive (non-interlaced) context.
const ContextFlagProgressive = 0x1

type DeviceOpener interface {
	OpenDevice(ctx context.Context, path string) (Device, error)
}

// Device is an open connection to an accelerator. Implementations are not
// required to be safe for concurrent use beyond what the accelerator
// library itself guarantees.
type Device interface {
	io.Closer

	Path() string
	QueryProfiles(ctx context.Context) ([]Profile, error)
	QueryEntryPoints(ctx context.Context, profile Profile) ([]EntryPoint, error)
	GetConfigAttribute(ctx context.Context, profile Profile, entryPoint EntryPoint, attribType ConfigAttribType) (uint32, error)
	CreateConfig(ctx context.Context, profile Profile, entryPoint EntryPoint, attribs []ConfigAttrib) (ConfigID, error)
	DestroyConfig(ctx context.Context, configID ConfigID) error
	QueryFrameConstraints(ctx context.Context, configID ConfigID) (*FrameConstraints, error)
	AllocFramePool(ctx context.Context, params FramePoolParams) (DeviceFramePool, error)
	CreateContext(ctx context.Context, configID ConfigID, width, height int, flags int, surfaces []SurfaceID) (ContextID, error)
	DestroyContext(ctx context.Context, contextID ContextID) error
}

type DeviceFramePool interface {
	io.Closer

	Surfaces() []SurfaceID
}
