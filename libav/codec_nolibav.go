//go:build !with_libav
// +build !with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwaccel"
	"github.com/xaionaro-go/hwaccel/codecprofile"
	"github.com/xaionaro-go/hwaccel/vaapi"
)

// CodecParameters stands in for *astiav.CodecParameters.
type CodecParameters struct{}

type Codec struct{}

func (c *Codec) Acceleration() *hwaccel.CodecContext {
	return nil
}

func (c *Codec) Close() error {
	return fmt.Errorf("not compiled with libav support")
}

func NewDecoder(
	ctx context.Context,
	module *vaapi.Module,
	codecName string,
	codecParameters *CodecParameters,
) (*Codec, error) {
	return nil, fmt.Errorf("not compiled with libav support")
}

func NewEncoder(
	ctx context.Context,
	module *vaapi.Module,
	codecParameters *CodecParameters,
	profileCfg codecprofile.Config,
) (*Codec, error) {
	return nil, fmt.Errorf("not compiled with libav support")
}

// NewCodecParameters is the constructor the CLI uses to describe a
// stream without an input.
func NewCodecParameters(
	codecID hwaccel.CodecID,
	profile hwaccel.ProfileHint,
	pixelFormat hwaccel.PixelFormat,
	width, height int,
) (*CodecParameters, func(), error) {
	return nil, func() {}, fmt.Errorf("not compiled with libav support")
}
