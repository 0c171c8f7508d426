// Package router dispatches screen requests in-process through a chi mux
// and implements the navigator used by the session store and the guards.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/middleware"
	"github.com/atinyakov/GigBid/internal/view"
)

// MaxHops bounds how many queued navigations a single Open or Submit follows.
const MaxHops = 8

// ErrRedirectLoop is returned when navigations keep queueing past MaxHops.
var ErrRedirectLoop = errors.New("too many redirects")

// App is the screen router. Screens register on Router(); the shell and the
// CLI drive it with Open and Submit.
type App struct {
	mux *chi.Mux
	vp  *view.Viewport
	out io.Writer
	log *zap.Logger

	mu      sync.Mutex
	pending []string
	current string
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger used for request logging.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.log = log }
}

// New returns an App whose screens write to out.
func New(out io.Writer, opts ...Option) *App {
	a := &App{
		vp:  view.NewViewport(),
		out: out,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux = chi.NewRouter()
	a.mux.Use(middleware.WithRequestLogging(a.log))
	a.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Page not found: %s\n", r.URL.Path)
	})
	a.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintf(w, "%s is not available on %s\n", r.Method, r.URL.Path)
	})
	return a
}

// Router returns the mux screens are registered on.
func (a *App) Router() chi.Router {
	return a.mux
}

// Current returns the path of the last dispatched screen.
func (a *App) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Navigate queues path to be opened by the next Drain. A path equal to the
// last queued one is dropped.
func (a *App) Navigate(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.pending); n > 0 && a.pending[n-1] == path {
		return
	}
	a.pending = append(a.pending, path)
	a.log.Debug("navigation queued", zap.String("path", path))
}

// Pending returns the queued navigations.
func (a *App) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.pending...)
}

// Open dispatches GET path and follows any navigations it queues.
func (a *App) Open(ctx context.Context, path string) error {
	if err := a.dispatch(ctx, http.MethodGet, path, nil); err != nil {
		return err
	}
	return a.Drain(ctx)
}

// Submit dispatches POST path with form and follows any navigations it
// queues.
func (a *App) Submit(ctx context.Context, path string, form url.Values) error {
	if err := a.dispatch(ctx, http.MethodPost, path, form); err != nil {
		return err
	}
	return a.Drain(ctx)
}

// Drain opens queued navigations in order, at most MaxHops of them.
func (a *App) Drain(ctx context.Context) error {
	for hops := 0; ; hops++ {
		path, ok := a.next()
		if !ok {
			return nil
		}
		if hops == MaxHops {
			a.mu.Lock()
			a.pending = nil
			a.mu.Unlock()
			return fmt.Errorf("%w: stopped at %s", ErrRedirectLoop, path)
		}
		if err := a.dispatch(ctx, http.MethodGet, path, nil); err != nil {
			return err
		}
	}
}

func (a *App) next() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return "", false
	}
	path := a.pending[0]
	a.pending = a.pending[1:]
	return path, true
}

func (a *App) dispatch(ctx context.Context, method, path string, form url.Values) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	frame := a.vp.Mount(path, a.out)
	req, err := http.NewRequestWithContext(view.NewContext(ctx, frame), method, path, body)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	a.mu.Lock()
	a.current = path
	a.mu.Unlock()

	a.mux.ServeHTTP(newScreenWriter(frame), req)
	return nil
}

// screenWriter adapts a view.Frame to http.ResponseWriter.
type screenWriter struct {
	frame  *view.Frame
	header http.Header
	status int
}

func newScreenWriter(f *view.Frame) *screenWriter {
	return &screenWriter{frame: f, header: make(http.Header)}
}

func (w *screenWriter) Header() http.Header {
	return w.header
}

func (w *screenWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.frame.Write(p)
}

func (w *screenWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}
