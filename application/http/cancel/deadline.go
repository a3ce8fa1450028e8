package cancel

import (
	"time"

	"github.com/benbjohnson/clock"
)

// CancelAfter requests cancellation on t once d elapses on clk.
// Calling stop before that prevents it. There is no deadline unless the caller asks for one.
func CancelAfter(clk clock.Clock, d time.Duration, t *Token) (stop func() bool) {
	timer := clk.AfterFunc(d, t.RequestCancellation)
	return timer.Stop
}
