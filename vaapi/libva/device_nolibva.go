//go:build !with_libva || !linux
// +build !with_libva !linux

package libva

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwaccel"
)

type Opener struct{}

var _ hwaccel.DeviceOpener = (*Opener)(nil)

func NewOpener() *Opener {
	return &Opener{}
}

func (o *Opener) OpenDevice(
	ctx context.Context,
	path string,
) (hwaccel.Device, error) {
	return nil, fmt.Errorf("not compiled with libva support")
}
