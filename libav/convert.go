//go:build with_libav
// +build with_libav

// Package libav plugs the VAAPI negotiation into libavcodec codecs
// (via go-astiav).
package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwaccel"
)

var codecIDs = map[astiav.CodecID]hwaccel.CodecID{
	astiav.CodecIDMpeg2Video: hwaccel.CodecIDMPEG2Video,
	astiav.CodecIDH264:       hwaccel.CodecIDH264,
	astiav.CodecIDHevc:       hwaccel.CodecIDHEVC,
}

var profileHints = map[hwaccel.CodecID]map[astiav.Profile]hwaccel.ProfileHint{
	hwaccel.CodecIDH264: {
		astiav.ProfileH264Baseline:            hwaccel.ProfileHintH264Baseline,
		astiav.ProfileH264ConstrainedBaseline: hwaccel.ProfileHintH264ConstrainedBaseline,
		astiav.ProfileH264Main:                hwaccel.ProfileHintH264Main,
		astiav.ProfileH264High:                hwaccel.ProfileHintH264High,
	},
	hwaccel.CodecIDHEVC: {
		astiav.ProfileHevcMain:   hwaccel.ProfileHintHEVCMain,
		astiav.ProfileHevcMain10: hwaccel.ProfileHintHEVCMain10,
	},
	hwaccel.CodecIDMPEG2Video: {
		astiav.ProfileMpeg2Simple: hwaccel.ProfileHintMPEG2Simple,
		astiav.ProfileMpeg2Main:   hwaccel.ProfileHintMPEG2Main,
	},
}

var pixelFormats = map[astiav.PixelFormat]hwaccel.PixelFormat{
	astiav.PixelFormatYuv420P: hwaccel.PixelFormatYUV420P,
	astiav.PixelFormatNv12:    hwaccel.PixelFormatNV12,
	astiav.PixelFormatNv21:    hwaccel.PixelFormatNV21,
	astiav.PixelFormatP010Le:  hwaccel.PixelFormatP010,
	astiav.PixelFormatYuv422P: hwaccel.PixelFormatYUV422P,
	astiav.PixelFormatUyvy422: hwaccel.PixelFormatUYVY422,
	astiav.PixelFormatYuyv422: hwaccel.PixelFormatYUYV422,
	astiav.PixelFormatYuv444P: hwaccel.PixelFormatYUV444P,
	astiav.PixelFormatGray8:   hwaccel.PixelFormatGray8,
	astiav.PixelFormatBgra:    hwaccel.PixelFormatBGRA,
	astiav.PixelFormatVaapi:   hwaccel.PixelFormatVAAPI,
}

func CodecIDFromAstiav(id astiav.CodecID) hwaccel.CodecID {
	return codecIDs[id]
}

func CodecIDToAstiav(id hwaccel.CodecID) astiav.CodecID {
	for k, v := range codecIDs {
		if v == id {
			return k
		}
	}
	return astiav.CodecIDNone
}

func ProfileHintFromAstiav(codecID hwaccel.CodecID, profile astiav.Profile) hwaccel.ProfileHint {
	return profileHints[codecID][profile]
}

func ProfileHintToAstiav(hint hwaccel.ProfileHint) astiav.Profile {
	for _, m := range profileHints {
		for k, v := range m {
			if v == hint {
				return k
			}
		}
	}
	return astiav.ProfileUnknown
}

func PixelFormatFromAstiav(pf astiav.PixelFormat) hwaccel.PixelFormat {
	return pixelFormats[pf]
}

func PixelFormatToAstiav(pf hwaccel.PixelFormat) astiav.PixelFormat {
	for k, v := range pixelFormats {
		if v == pf {
			return k
		}
	}
	return astiav.PixelFormatNone
}

// NewCodecContext describes an allocated libavcodec context to the
// negotiation. libavcodec decoders with a VAAPI hwaccel always accept
// frames from the hardware pool.
func NewCodecContext(
	codecName string,
	cc *astiav.CodecContext,
) *hwaccel.CodecContext {
	codecID := CodecIDFromAstiav(cc.CodecID())
	return &hwaccel.CodecContext{
		CodecID:       codecID,
		CodecName:     codecName,
		Profile:       ProfileHintFromAstiav(codecID, cc.Profile()),
		SwPixelFormat: PixelFormatFromAstiav(cc.PixelFormat()),
		CodedWidth:    cc.Width(),
		CodedHeight:   cc.Height(),
		Capabilities:  hwaccel.CodecCapabilityDirectRendering,
		ThreadCount:   cc.ThreadCount(),
	}
}
