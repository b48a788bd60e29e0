package internal

import (
	"context"
	"runtime"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type Releasable interface {
	IsReleased() bool
}

// ReportLeakOnFinalize logs an error if obj is garbage collected without
// being released first.
func ReportLeakOnFinalize[T Releasable](
	ctx context.Context,
	obj T,
	description string,
) {
	runtime.SetFinalizer(obj, func(obj T) {
		if obj.IsReleased() {
			return
		}
		logger.Errorf(ctx, "%s (%T) was garbage collected without being released", description, obj)
	})
}
