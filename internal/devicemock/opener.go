package devicemock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xaionaro-go/hwaccel"
)

// Opener opens a new Device for every path not listed in its failing
// set. Every opened device is kept for inspection.
type Opener struct {
	locker       sync.Mutex
	capabilities Capabilities
	failing      map[string]struct{}
	openDelay    time.Duration
	onOpen       func(*Device)
	attempts     []string
	opened       []*Device
}

var _ hwaccel.DeviceOpener = (*Opener)(nil)

func NewOpener(capabilities Capabilities, failingPaths ...string) *Opener {
	o := &Opener{
		capabilities: capabilities,
		failing:      map[string]struct{}{},
	}
	for _, path := range failingPaths {
		o.failing[path] = struct{}{}
	}
	return o
}

// SetOpenDelay makes every OpenDevice call block for d, to widen race
// windows in concurrency tests.
func (o *Opener) SetOpenDelay(d time.Duration) {
	o.locker.Lock()
	defer o.locker.Unlock()
	o.openDelay = d
}

// SetOnOpen registers a callback to script every newly opened device.
func (o *Opener) SetOnOpen(fn func(*Device)) {
	o.locker.Lock()
	defer o.locker.Unlock()
	o.onOpen = fn
}

func (o *Opener) SetFailing(paths ...string) {
	o.locker.Lock()
	defer o.locker.Unlock()
	o.failing = map[string]struct{}{}
	for _, path := range paths {
		o.failing[path] = struct{}{}
	}
}

func (o *Opener) OpenDevice(ctx context.Context, path string) (hwaccel.Device, error) {
	o.locker.Lock()
	delay := o.openDelay
	o.attempts = append(o.attempts, path)
	_, fail := o.failing[path]
	o.locker.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, fmt.Errorf("unable to open '%s'", path)
	}

	d := NewDevice(path, o.capabilities)
	o.locker.Lock()
	defer o.locker.Unlock()
	if o.onOpen != nil {
		o.onOpen(d)
	}
	o.opened = append(o.opened, d)
	return d, nil
}

func (o *Opener) Attempts() []string {
	o.locker.Lock()
	defer o.locker.Unlock()
	return slices.Clone(o.attempts)
}

func (o *Opener) Opened() []*Device {
	o.locker.Lock()
	defer o.locker.Unlock()
	return slices.Clone(o.opened)
}

// Last returns the most recently opened device, or nil.
func (o *Opener) Last() *Device {
	o.locker.Lock()
	defer o.locker.Unlock()
	if len(o.opened) == 0 {
		return nil
	}
	return o.opened[len(o.opened)-1]
}
