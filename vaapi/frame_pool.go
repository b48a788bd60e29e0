package vaapi

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/xsync"
)

// FramePoolSize is the number of surfaces of every session frame pool,
// regardless of the resolution.
const FramePoolSize = 32

// FramePool is a fixed set of device surfaces handed out to the codec as
// frame buffers.
type FramePool struct {
	locker   xsync.Mutex
	pool     hwaccel.DeviceFramePool
	params   hwaccel.FramePoolParams
	surfaces []hwaccel.SurfaceID
	free     []hwaccel.SurfaceID
	closed   bool
}

var _ hwaccel.BufferAllocator = (*FramePool)(nil)

func NewFramePool(
	ctx context.Context,
	dev hwaccel.Device,
	params hwaccel.FramePoolParams,
) (_ret *FramePool, _err error) {
	logger.Tracef(ctx, "NewFramePool(ctx, %#+v)", params)
	defer func() { logger.Tracef(ctx, "/NewFramePool(ctx, %#+v): %v", params, _err) }()

	pool, err := dev.AllocFramePool(ctx, params)
	if err != nil {
		return nil, hwaccel.NewError(
			hwaccel.ErrAllocationFailure,
			"allocate frame pool",
			fmt.Errorf("failed to create VAAPI frame context: %w", err),
		)
	}

	surfaces := pool.Surfaces()
	if len(surfaces) != params.Size {
		if err := pool.Close(); err != nil {
			logger.Errorf(ctx, "unable to close the frame pool: %v", err)
		}
		return nil, hwaccel.NewError(
			hwaccel.ErrAllocationFailure,
			"initialize frame pool",
			fmt.Errorf("failed to initialise VAAPI frame context: got %d surfaces instead of %d", len(surfaces), params.Size),
		)
	}

	return &FramePool{
		pool:     pool,
		params:   params,
		surfaces: slices.Clone(surfaces),
		free:     slices.Clone(surfaces),
	}, nil
}

func (p *FramePool) Params() hwaccel.FramePoolParams {
	return p.params
}

func (p *FramePool) Size() int {
	return len(p.surfaces)
}

func (p *FramePool) Surfaces() []hwaccel.SurfaceID {
	return slices.Clone(p.surfaces)
}

// Available returns how many surfaces are not handed out.
func (p *FramePool) Available(ctx context.Context) int {
	return xsync.DoR1(ctx, &p.locker, func() int {
		return len(p.free)
	})
}

// GetBuffer hands out a free surface; it fails when all surfaces are in
// use since the pool never grows.
func (p *FramePool) GetBuffer(ctx context.Context) (hwaccel.Buffer, error) {
	p.locker.ManualLock(ctx)
	defer p.locker.ManualUnlock(ctx)
	if p.closed {
		return nil, hwaccel.NewError(hwaccel.ErrAllocationFailure, "get buffer", fmt.Errorf("the frame pool is closed"))
	}
	if len(p.free) == 0 {
		return nil, hwaccel.NewError(hwaccel.ErrAllocationFailure, "get buffer", fmt.Errorf("all %d surfaces are in use", len(p.surfaces)))
	}
	id := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return &Surface{
		ID:   id,
		pool: p,
	}, nil
}

func (p *FramePool) put(id hwaccel.SurfaceID) {
	ctx := xsync.WithNoLogging(context.Background(), true)
	p.locker.Do(ctx, func() {
		if p.closed {
			return
		}
		p.free = append(p.free, id)
	})
}

func (p *FramePool) Close() error {
	ctx := xsync.WithNoLogging(context.Background(), true)
	return xsync.DoR1(ctx, &p.locker, func() error {
		if p.closed {
			return nil
		}
		p.closed = true
		p.free = nil
		return p.pool.Close()
	})
}

// Surface is a frame buffer backed by a device surface.
type Surface struct {
	ID       hwaccel.SurfaceID
	pool     *FramePool
	released atomic.Bool
}

var _ hwaccel.Buffer = (*Surface)(nil)

func (s *Surface) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.pool.put(s.ID)
}

// bufferAllocator is what the codec gets for its buffers while a decode
// session is attached: pool surfaces when the codec supports custom
// buffers, whatever it used before otherwise.
type bufferAllocator struct {
	pool            *FramePool
	previous        hwaccel.BufferAllocator
	directRendering bool
}

var _ hwaccel.BufferAllocator = (*bufferAllocator)(nil)

func (a *bufferAllocator) GetBuffer(ctx context.Context) (hwaccel.Buffer, error) {
	if a.directRendering {
		return a.pool.GetBuffer(ctx)
	}
	if a.previous == nil {
		return nil, hwaccel.NewError(hwaccel.ErrAllocationFailure, "get buffer", fmt.Errorf("the codec does not support direct rendering and has no default allocator"))
	}
	return a.previous.GetBuffer(ctx)
}
