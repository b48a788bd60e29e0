//go:build with_libav
// +build with_libav

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwaccel/codecprofile"
)

// NewDictionary converts the encoder options; the caller frees the result.
func NewDictionary(
	ctx context.Context,
	items codecprofile.DictionaryItems,
) (*astiav.Dictionary, error) {
	dict := astiav.NewDictionary()
	for _, opt := range items {
		logger.Debugf(ctx, "options['%s'] = '%s'", opt.Key, opt.Value)
		if err := dict.Set(opt.Key, opt.Value, 0); err != nil {
			dict.Free()
			return nil, fmt.Errorf("unable to set option '%s' to '%s': %w", opt.Key, opt.Value, err)
		}
	}
	return dict, nil
}
