package hwaccel

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type PixelFormat int

const (
	PixelFormatNone = PixelFormat(iota)
	PixelFormatYUV420P
	PixelFormatNV12
	PixelFormatNV21
	PixelFormatP010
	PixelFormatYUV422P
	PixelFormatUYVY422
	PixelFormatYUYV422
	PixelFormatYUV444P
	PixelFormatGray8
	PixelFormatBGRA
	// PixelFormatVAAPI is the opaque format of frames living in device
	// surfaces.
	PixelFormatVAAPI
	EndOfPixelFormat
)

// PixelFormatDescriptor holds the layout properties used to compare
// formats structurally.
type PixelFormatDescriptor struct {
	Name          string
	NbComponents  int
	Log2ChromaW   int
	Log2ChromaH   int
	IsHardware    bool
	BitsPerSample int
}

var pixelFormatDescriptors = map[PixelFormat]PixelFormatDescriptor{
	PixelFormatYUV420P: {Name: "yuv420p", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 1, BitsPerSample: 8},
	PixelFormatNV12:    {Name: "nv12", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 1, BitsPerSample: 8},
	PixelFormatNV21:    {Name: "nv21", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 1, BitsPerSample: 8},
	PixelFormatP010:    {Name: "p010le", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 1, BitsPerSample: 10},
	PixelFormatYUV422P: {Name: "yuv422p", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatUYVY422: {Name: "uyvy422", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatYUYV422: {Name: "yuyv422", NbComponents: 3, Log2ChromaW: 1, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatYUV444P: {Name: "yuv444p", NbComponents: 3, Log2ChromaW: 0, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatGray8:   {Name: "gray", NbComponents: 1, Log2ChromaW: 0, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatBGRA:    {Name: "bgra", NbComponents: 4, Log2ChromaW: 0, Log2ChromaH: 0, BitsPerSample: 8},
	PixelFormatVAAPI:   {Name: "vaapi", IsHardware: true},
}

// Descriptor returns false for PixelFormatNone and unknown values.
func (pf PixelFormat) Descriptor() (PixelFormatDescriptor, bool) {
	d, ok := pixelFormatDescriptors[pf]
	return d, ok
}

// IsStructurallyEqual reports whether both formats have the same number
// of components and the same chroma subsampling.
func (pf PixelFormat) IsStructurallyEqual(other PixelFormat) bool {
	a, ok := pf.Descriptor()
	if !ok {
		return false
	}
	b, ok := other.Descriptor()
	if !ok {
		return false
	}
	return a.NbComponents == b.NbComponents &&
		a.Log2ChromaW == b.Log2ChromaW &&
		a.Log2ChromaH == b.Log2ChromaH
}

func (pf PixelFormat) String() string {
	if pf == PixelFormatNone {
		return "none"
	}
	if d, ok := pf.Descriptor(); ok {
		return d.Name
	}
	return fmt.Sprintf("unexpected_pixel_format_%d", int(pf))
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for cmp := PixelFormatNone; cmp < EndOfPixelFormat; cmp++ {
		if cmp.String() == s {
			return cmp, nil
		}
	}
	return PixelFormatNone, fmt.Errorf("unknown value of the PixelFormat: '%s'", s)
}

func (pf PixelFormat) MarshalJSON() ([]byte, error) {
	return []byte(`"` + pf.String() + `"`), nil
}

func (pf *PixelFormat) UnmarshalJSON(b []byte) error {
	if pf == nil {
		return fmt.Errorf("PixelFormat is nil")
	}
	v, err := ParsePixelFormat(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*pf = v
	return nil
}

func (pf PixelFormat) MarshalYAML() (any, error) {
	return pf.String(), nil
}

func (pf *PixelFormat) UnmarshalYAML(value *yaml.Node) error {
	return pf.UnmarshalJSON([]byte(value.Value))
}

// RTFormat is a device-level surface format class bit (VA_RT_FORMAT_*).
type RTFormat uint32

const (
	RTFormatYUV420 = RTFormat(0x00000001)
	RTFormatYUV422 = RTFormat(0x00000002)
	RTFormatYUV444 = RTFormat(0x00000004)
	RTFormatYUV400 = RTFormat(0x00000010)
)

func (f RTFormat) String() string {
	switch f {
	case RTFormatYUV420:
		return "YUV420"
	case RTFormatYUV422:
		return "YUV422"
	case RTFormatYUV444:
		return "YUV444"
	case RTFormatYUV400:
		return "YUV400"
	}
	return fmt.Sprintf("RTFormat(0x%08X)", uint32(f))
}
