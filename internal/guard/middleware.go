package guard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/session"
	"github.com/atinyakov/GigBid/internal/view"
)

// Source is the read side of a session store.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (cancel func())
	Wait(ctx context.Context) (session.Snapshot, error)
}

// Watch keeps g in step with every session change until stop is called.
func Watch(src Source, g *Gate) (stop func()) {
	cancel := src.Subscribe(func(snap session.Snapshot) { g.Update(snap) })
	// catch a change that landed before the subscription
	g.Update(src.Snapshot())
	return cancel
}

type options struct {
	loading func(w io.Writer)
	log     *zap.Logger
}

// Option configures Middleware.
type Option func(*options)

// WithLoading sets how the loading indicator is drawn.
func WithLoading(fn func(w io.Writer)) Option {
	return func(o *options) { o.loading = fn }
}

// WithLogger sets the logger for guard decisions.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// Middleware guards a screen handler with policy. The screen is rendered
// only once the session is resolved and satisfies the policy; while it is
// unresolved only the loading indicator is written. If the request carries
// a view.Frame, the gate keeps watching the session until the frame is
// unmounted, so a later logout still redirects.
func Middleware(src Source, nav Navigator, policy Policy, opts ...Option) func(http.Handler) http.Handler {
	o := options{
		loading: func(w io.Writer) { fmt.Fprintln(w, "Loading...") },
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate := NewGate(policy, nav)
			if gate.Update(src.Snapshot()) == Unresolved {
				o.loading(w)
				snap, err := src.Wait(r.Context())
				if err != nil {
					o.log.Debug("guard wait aborted", zap.String("path", r.URL.Path), zap.Error(err))
					return
				}
				gate.Update(snap)
			}

			if gate.State() == Authorized {
				if f, ok := view.FromContext(r.Context()); ok {
					f.OnUnmount(Watch(src, gate))
				}
			}
			if st := gate.State(); st != Authorized {
				o.log.Debug("guard blocked screen",
					zap.String("path", r.URL.Path),
					zap.Stringer("state", st),
					zap.String("redirect", policy.RedirectTo),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
