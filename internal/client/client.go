// Package client wires the API client, the session store, the router and
// the screens into one application value driven by the shell and the CLI.
package client

import (
	"context"
	"crypto/cipher"
	"fmt"
	"io"
	"net/url"

	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/api"
	"github.com/atinyakov/GigBid/internal/client/storage"
	"github.com/atinyakov/GigBid/internal/config"
	"github.com/atinyakov/GigBid/internal/output"
	"github.com/atinyakov/GigBid/internal/router"
	"github.com/atinyakov/GigBid/internal/screens"
	"github.com/atinyakov/GigBid/internal/session"
)

// App is a running marketplace client.
type App struct {
	opts    *config.Options
	log     *zap.Logger
	api     *api.Client
	creds   *storage.CredentialFile
	store   *session.Store
	router  *router.App
	printer *output.Printer
}

// New builds an App from opts. Screens write to out.
func New(opts *config.Options, out io.Writer, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	httpClient, err := api.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		return nil, err
	}

	var aead cipher.AEAD
	if opts.StorageKey != "" {
		if aead, err = storage.NewAEADFromSecret([]byte(opts.StorageKey)); err != nil {
			return nil, err
		}
	}

	mode, err := output.ParseColorMode(opts.Color)
	if err != nil {
		return nil, err
	}
	printer := output.NewPrinter(out, output.ResolveColors(mode))

	a := &App{
		opts:    opts,
		log:     log,
		api:     api.New(opts.APIURL, httpClient, log.Named("api")),
		creds:   storage.NewCredentialFile(opts.TokenFile, aead),
		router:  router.New(out, router.WithLogger(log.Named("router"))),
		printer: printer,
	}
	a.store = session.New(a.creds, a.api, a.router, session.WithLogger(log.Named("session")))
	screens.New(a.api, a.store, a.router, printer, screens.WithLogger(log.Named("screens"))).
		Routes(a.router.Router())

	log.Debug("client configured",
		zap.String("api_url", opts.APIURL),
		zap.String("token_file", opts.TokenFile),
		zap.Bool("sealed", aead != nil),
	)
	return a, nil
}

// Start loads the persisted credential and resolves its identity. A stale
// credential queues a navigation to the login screen, which the next Drain
// or Open follows.
func (a *App) Start(ctx context.Context) session.Snapshot {
	snap := a.store.Initialize(ctx)
	a.log.Debug("session initialized", zap.Stringer("status", snap.Status))
	return snap
}

// Open shows the screen at path.
func (a *App) Open(ctx context.Context, path string) error {
	return a.router.Open(ctx, path)
}

// Submit posts form to the screen at path.
func (a *App) Submit(ctx context.Context, path string, form url.Values) error {
	return a.router.Submit(ctx, path, form)
}

// Drain follows navigations queued outside of Open and Submit.
func (a *App) Drain(ctx context.Context) error {
	return a.router.Drain(ctx)
}

// Logout ends the session and shows the login screen.
func (a *App) Logout(ctx context.Context) error {
	return a.Submit(ctx, "/logout", nil)
}

// Session returns the current session snapshot.
func (a *App) Session() session.Snapshot {
	return a.store.Snapshot()
}

// Current returns the path of the screen shown last.
func (a *App) Current() string {
	return a.router.Current()
}

// Printer returns the printer used for messages outside of screens.
func (a *App) Printer() *output.Printer {
	return a.printer
}

// Whoami prints the identity behind the current session.
func (a *App) Whoami() {
	snap := a.store.Snapshot()
	if !snap.Authenticated() {
		a.printer.Print("Not logged in.")
		return
	}
	id := snap.Identity
	a.printer.Print("%s <%s> %s (id %d)", id.Name, id.Email, id.Role, id.ID)
}

// TokenFile returns where the credential is persisted.
func (a *App) TokenFile() string {
	return a.creds.Path()
}

// String describes the API the app talks to.
func (a *App) String() string {
	return fmt.Sprintf("GigBid client for %s", a.api.BaseURL())
}
