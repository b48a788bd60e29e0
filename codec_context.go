package hwaccel

import (
	"context"
)

type CodecCapabilities uint

const (
	// CodecCapabilityDirectRendering means the codec accepts frame buffers
	// from a custom allocator.
	CodecCapabilityDirectRendering = CodecCapabilities(1 << iota)
)

func (c CodecCapabilities) Has(flag CodecCapabilities) bool {
	return c&flag == flag
}

type Buffer interface {
	Release()
}

type BufferAllocator interface {
	GetBuffer(ctx context.Context) (Buffer, error)
}

// CodecContext is the part of a pipeline codec instance that hardware
// acceleration setup reads and rewires.
type CodecContext struct {
	CodecID       CodecID
	CodecName     string
	Profile       ProfileHint
	SwPixelFormat PixelFormat
	CodedWidth    int
	CodedHeight   int
	Capabilities  CodecCapabilities

	ThreadCount         int
	ThreadSafeCallbacks bool
	BufferAllocator     BufferAllocator

	// HWAccel holds the decode session; owned by the acceleration module.
	HWAccel any
	// HWFrames is the frame pool decoded frames live in.
	HWFrames BufferAllocator
	// Opaque carries the exported device reference of an encode session.
	Opaque any
}
