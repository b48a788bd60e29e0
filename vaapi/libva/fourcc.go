// Package libva implements the accelerator device on top of the system
// libva/libva-drm libraries.
package libva

import (
	"github.com/xaionaro-go/hwaccel"
)

func fourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var pixelFormatFourCCs = map[hwaccel.PixelFormat]uint32{
	hwaccel.PixelFormatNV12:    fourCC('N', 'V', '1', '2'),
	hwaccel.PixelFormatNV21:    fourCC('N', 'V', '2', '1'),
	hwaccel.PixelFormatYUV420P: fourCC('I', '4', '2', '0'),
	hwaccel.PixelFormatP010:    fourCC('P', '0', '1', '0'),
	hwaccel.PixelFormatYUV422P: fourCC('4', '2', '2', 'H'),
	hwaccel.PixelFormatUYVY422: fourCC('U', 'Y', 'V', 'Y'),
	hwaccel.PixelFormatYUYV422: fourCC('Y', 'U', 'Y', '2'),
	hwaccel.PixelFormatYUV444P: fourCC('4', '4', '4', 'P'),
	hwaccel.PixelFormatGray8:   fourCC('Y', '8', '0', '0'),
	hwaccel.PixelFormatBGRA:    fourCC('B', 'G', 'R', 'A'),
}

// PixelFormatFourCC returns the libva fourcc of the pixel format.
func PixelFormatFourCC(pf hwaccel.PixelFormat) (uint32, bool) {
	v, ok := pixelFormatFourCCs[pf]
	return v, ok
}

// PixelFormatFromFourCC returns PixelFormatNone for fourccs without a
// counterpart.
func PixelFormatFromFourCC(fourcc uint32) hwaccel.PixelFormat {
	for pf, v := range pixelFormatFourCCs {
		if v == fourcc {
			return pf
		}
	}
	return hwaccel.PixelFormatNone
}

// FourCCString renders a fourcc the way libva tools print it.
func FourCCString(fourcc uint32) string {
	return string([]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	})
}
