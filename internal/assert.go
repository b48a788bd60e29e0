package internal

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

// Assertf panics (through the logger, so the message is logged first) if
// an internal invariant does not hold.
func Assertf(
	ctx context.Context,
	mustBeTrue bool,
	format string,
	args ...any,
) {
	if mustBeTrue {
		return
	}
	logger.Panicf(ctx, "assertion failed: "+format, args...)
}
