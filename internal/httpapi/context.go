package httpapi

import (
	"context"
	"net/http"
	"time"
)

// shutdownCtx is cancelled when the daemon stops; in-flight predictions end
// with it instead of holding shutdown up through their retry backoff.
var shutdownCtx = context.Background()

// predictTimeout bounds one prediction request, spawn and retries included.
// Zero leaves it to the client.
var predictTimeout time.Duration

// SetBaseContext installs the daemon lifetime context; nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx = ctx
}

// SetPredictTimeout bounds prediction requests; d <= 0 disables the bound.
func SetPredictTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	predictTimeout = d
}

// predictContext derives the context for serving a prediction: it ends when
// the client goes away, when the daemon shuts down, or after predictTimeout.
func predictContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(shutdownCtx, cancel)
	if predictTimeout <= 0 {
		return ctx, func() { stop(); cancel() }
	}
	tctx, tcancel := context.WithTimeout(ctx, predictTimeout)
	return tctx, func() { tcancel(); stop(); cancel() }
}
