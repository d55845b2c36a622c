//go:build !mips && !mipsle

package transport

import (
	"context"
	"time"
)

// deadlineContext builds a context bound to timeout for a single endpoint
// transfer; gousb's ReadContext/WriteContext cancel the underlying libusb
// transfer when it expires.
func deadlineContext(timeout time.Duration) context.Context {
	ctx, _ := context.WithTimeout(context.Background(), timeout)
	return ctx
}
