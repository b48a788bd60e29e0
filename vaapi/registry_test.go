package vaapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/internal/devicemock"
)

func TestRegistryProbesAllCandidatesInOrder(t *testing.T) {
	ctx := context.Background()
	paths := hwaccel.DefaultDevicePaths()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities(), paths...)
	r := NewRegistry(opener, hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.Nil(t, ref)
	require.ErrorIs(t, err, hwaccel.ErrNoDeviceFound)
	require.Equal(t, []string{
		"/dev/dri/renderD128",
		"/dev/dri/renderD129",
		"/dev/dri/renderD130",
		"/dev/dri/card0",
		"/dev/dri/card1",
		"/dev/dri/card2",
	}, opener.Attempts())

	_, ok := r.DevicePath(ctx)
	require.False(t, ok)

	// nothing is cached: the next call probes everything again
	_, err = r.Acquire(ctx)
	require.ErrorIs(t, err, hwaccel.ErrNoDeviceFound)
	require.Len(t, opener.Attempts(), 12)
}

func TestRegistryStopsAtFirstSuccess(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities(), "/dev/dri/renderD128")
	r := NewRegistry(opener, hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	defer ref.Release(ctx)

	require.Equal(t, []string{"/dev/dri/renderD128", "/dev/dri/renderD129"}, opener.Attempts())
	require.Equal(t, "/dev/dri/renderD129", ref.Path())

	path, ok := r.DevicePath(ctx)
	require.True(t, ok)
	require.Equal(t, "/dev/dri/renderD129", path)
}

func TestRegistryLegacyCardFallback(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(
		devicemock.DefaultCapabilities(),
		"/dev/dri/renderD128", "/dev/dri/renderD129", "/dev/dri/renderD130",
	)
	r := NewRegistry(opener, hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	defer ref.Release(ctx)
	require.Equal(t, "/dev/dri/card0", ref.Path())
	require.Len(t, opener.Attempts(), 4)
}

func TestRegistryConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities())
	opener.SetOpenDelay(10 * time.Millisecond)
	r := NewRegistry(opener, hwaccel.Config{})

	const workers = 32
	refs := make([]*DeviceRef, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs[i], errs[i] = r.Acquire(ctx)
		}()
	}
	wg.Wait()

	require.Len(t, opener.Attempts(), 1)
	require.Len(t, opener.Opened(), 1)
	for i := range workers {
		require.NoError(t, errs[i])
		require.Same(t, opener.Opened()[0], refs[i].Device())
	}

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs[i].Release(ctx)
		}()
	}
	wg.Wait()
	require.False(t, opener.Opened()[0].IsClosed())

	require.NoError(t, r.Shutdown(ctx))
	require.True(t, opener.Opened()[0].IsClosed())
}

func TestRegistryReleaseKeepsDeviceOpen(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities())
	r := NewRegistry(opener, hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	ref.Release(ctx)
	ref.Release(ctx)
	require.True(t, ref.IsReleased())

	dev := opener.Last()
	require.False(t, dev.IsClosed())

	ref, err = r.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, dev, ref.Device())
	require.Len(t, opener.Opened(), 1)
	ref.Release(ctx)

	require.NoError(t, r.Shutdown(ctx))
	require.True(t, dev.IsClosed())
	require.NoError(t, r.Shutdown(ctx))
	require.Equal(t, []string{devicemock.MethodClose}, dev.Calls())
}

func TestRegistryShutdownWithOutstandingReference(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities())
	r := NewRegistry(opener, hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	clone, err := ref.Clone(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Shutdown(ctx))
	dev := opener.Last()
	require.False(t, dev.IsClosed())

	ref.Release(ctx)
	require.False(t, dev.IsClosed())
	clone.Release(ctx)
	require.True(t, dev.IsClosed())

	ref, err = r.Acquire(ctx)
	require.NoError(t, err)
	defer ref.Release(ctx)
	require.Len(t, opener.Opened(), 2)
	require.NotSame(t, dev, ref.Device())
}

func TestRegistryAcquireAfterShutdownReusesLiveDevice(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities())
	r := NewRegistry(opener, hwaccel.Config{})

	held, err := r.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Shutdown(ctx))
	require.NoError(t, r.Shutdown(ctx))
	dev := opener.Last()
	require.False(t, dev.IsClosed())

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, dev, ref.Device())
	require.Len(t, opener.Opened(), 1)

	held.Release(ctx)
	ref.Release(ctx)
	require.False(t, dev.IsClosed())

	require.NoError(t, r.Shutdown(ctx))
	require.True(t, dev.IsClosed())
	require.Equal(t, []string{devicemock.MethodClose}, dev.Calls())
}

func TestRegistryCloneReleasedReference(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(devicemock.NewOpener(devicemock.DefaultCapabilities()), hwaccel.Config{})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	ref.Release(ctx)

	_, err = ref.Clone(ctx)
	require.ErrorIs(t, err, hwaccel.ErrAllocationFailure)
}

func TestRegistryCustomDevicePaths(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities(), "/dev/dri/renderD200")
	r := NewRegistry(opener, hwaccel.Config{
		DevicePaths: []string{"/dev/dri/renderD200", "/dev/dri/renderD201"},
	})

	ref, err := r.Acquire(ctx)
	require.NoError(t, err)
	defer ref.Release(ctx)
	require.Equal(t, "/dev/dri/renderD201", ref.Path())
}

func TestRegistryNoDeviceFoundCarriesReasons(t *testing.T) {
	ctx := context.Background()
	opener := devicemock.NewOpener(devicemock.DefaultCapabilities(), "/dev/dri/renderD200")
	r := NewRegistry(opener, hwaccel.Config{DevicePaths: []string{"/dev/dri/renderD200"}})

	_, err := r.Acquire(ctx)
	var hwErr *hwaccel.Error
	require.True(t, errors.As(err, &hwErr))
	require.Equal(t, hwaccel.ErrNoDeviceFound, hwErr.Kind)
	require.Contains(t, err.Error(), "/dev/dri/renderD200")
}
