package libva

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwaccel"
)

func TestFourCC(t *testing.T) {
	// VA_FOURCC_NV12 in va.h
	require.Equal(t, uint32(0x3231564E), fourCC('N', 'V', '1', '2'))
	require.Equal(t, "NV12", FourCCString(0x3231564E))

	for pf, fourcc := range pixelFormatFourCCs {
		require.Equal(t, pf, PixelFormatFromFourCC(fourcc), FourCCString(fourcc))
		v, ok := PixelFormatFourCC(pf)
		require.True(t, ok)
		require.Equal(t, fourcc, v)
	}

	require.Equal(t, hwaccel.PixelFormatNone, PixelFormatFromFourCC(fourCC('R', 'G', 'B', 'X')))
	_, ok := PixelFormatFourCC(hwaccel.PixelFormatVAAPI)
	require.False(t, ok)
}
