//go:build with_libav
// +build with_libav

package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwaccel"
)

type CodecParameters = astiav.CodecParameters

// NewCodecParameters describes a video stream without an input; the
// returned func frees the parameters.
func NewCodecParameters(
	codecID hwaccel.CodecID,
	profile hwaccel.ProfileHint,
	pixelFormat hwaccel.PixelFormat,
	width, height int,
) (*CodecParameters, func(), error) {
	id := CodecIDToAstiav(codecID)
	if id == astiav.CodecIDNone {
		return nil, func() {}, fmt.Errorf("codec %s has no libavcodec counterpart", codecID)
	}

	p := astiav.AllocCodecParameters()
	if p == nil {
		return nil, func() {}, fmt.Errorf("unable to allocate codec parameters")
	}
	p.SetMediaType(astiav.MediaTypeVideo)
	p.SetCodecID(id)
	p.SetProfile(ProfileHintToAstiav(profile))
	p.SetPixelFormat(PixelFormatToAstiav(pixelFormat))
	p.SetWidth(width)
	p.SetHeight(height)
	return p, p.Free, nil
}
