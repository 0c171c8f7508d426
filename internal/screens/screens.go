// Package screens implements the marketplace screens as chi handlers. Each
// handler reads the identity from the session store, calls the API and
// renders text through the frame it was dispatched in.
package screens

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/api"
	"github.com/atinyakov/GigBid/internal/guard"
	"github.com/atinyakov/GigBid/internal/models"
	"github.com/atinyakov/GigBid/internal/output"
	"github.com/atinyakov/GigBid/internal/session"
)

// API is the part of the marketplace API the screens call.
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (string, error)
	Signup(ctx context.Context, req api.SignupRequest) (string, error)
	ListProjects(ctx context.Context, token string) ([]models.Project, error)
	GetProject(ctx context.Context, token string, id int64) (models.Project, error)
	CreateProject(ctx context.Context, token string, req api.CreateProjectRequest) (models.Project, error)
	PlaceBid(ctx context.Context, token string, req api.PlaceBidRequest) (models.Bid, error)
	UpdateBid(ctx context.Context, token string, req api.UpdateBidRequest) (models.Bid, error)
	DeleteBid(ctx context.Context, token string, bidID int64) error
	SelectBid(ctx context.Context, token string, projectID, bidID int64) error
	Complete(ctx context.Context, token string, projectID int64) error
	Deliver(ctx context.Context, token string, projectID int64, fileName string, content io.Reader) (models.Deliverable, error)
}

// Store is the session store as seen by the screens.
type Store interface {
	guard.Source
	Authenticate(ctx context.Context, token string) session.Snapshot
	Deauthenticate()
	RequireIdentity() (string, models.Identity, error)
}

// Screens holds the dependencies shared by every screen.
type Screens struct {
	api     API
	store   Store
	nav     guard.Navigator
	printer *output.Printer
	log     *zap.Logger
	now     func() time.Time

	loginPath   string
	landingPath string
}

// Option configures Screens.
type Option func(*Screens)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Screens) { s.log = log }
}

// WithClock replaces time.Now, which decides whether bidding is still open
// and whether a deadline lies in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Screens) { s.now = now }
}

// WithLoginPath sets where protected screens send anonymous users.
func WithLoginPath(path string) Option {
	return func(s *Screens) { s.loginPath = path }
}

// WithLandingPath sets where anonymous-only screens send logged in users.
func WithLandingPath(path string) Option {
	return func(s *Screens) { s.landingPath = path }
}

// New returns the screens. printer only carries the color settings; every
// screen writes to its own frame.
func New(client API, store Store, nav guard.Navigator, printer *output.Printer, opts ...Option) *Screens {
	s := &Screens{
		api:         client,
		store:       store,
		nav:         nav,
		printer:     printer,
		log:         zap.NewNop(),
		now:         time.Now,
		loginPath:   session.DefaultLoginPath,
		landingPath: session.DefaultLandingPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every screen on r, each behind the guard for its policy.
func (s *Screens) Routes(r chi.Router) {
	anonymous := guard.Policy{RequireAuth: false, RedirectTo: s.landingPath}
	protected := guard.Policy{RequireAuth: true, RedirectTo: s.loginPath}
	gopts := []guard.Option{
		guard.WithLogger(s.log),
		guard.WithLoading(func(w io.Writer) { s.printer.To(w).Print("Loading...") }),
	}

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(s.store, s.nav, anonymous, gopts...))
		r.Get("/", s.home)
		r.Get("/login", s.loginForm)
		r.Post("/login", s.login)
		r.Get("/signup", s.signupForm)
		r.Post("/signup", s.signup)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware(s.store, s.nav, protected, gopts...))
		r.Get("/dashboard", s.dashboard)
		r.Route("/project", func(r chi.Router) {
			r.Get("/list", s.projectList)
			r.Get("/create", s.createForm)
			r.Post("/create", s.createProject)
			r.Get("/{id}", s.projectDetail)
			r.Post("/{id}/bid", s.placeBid)
			r.Post("/{id}/bid/withdraw", s.withdrawBid)
			r.Post("/{id}/select", s.selectBid)
			r.Post("/{id}/deliver", s.deliver)
			r.Post("/{id}/complete", s.complete)
		})
	})

	r.Post("/logout", s.logout)
}

// navbar prints the line shown above every screen.
func (s *Screens) navbar(p *output.Printer) {
	snap := s.store.Snapshot()
	if snap.Authenticated() {
		p.Print("%s | Welcome, %s (%s) | logout", p.Bold("GigBid"), snap.Identity.Name, snap.Identity.Role)
		return
	}
	p.Print("%s | login | signup", p.Bold("GigBid"))
}

// identity returns the credential and identity for a protected screen. ok
// is false if the session was lost since the guard let the request through.
func (s *Screens) identity(p *output.Printer) (string, models.Identity, bool) {
	token, id, err := s.store.RequireIdentity()
	if err != nil {
		p.Error("Not authenticated. Please log in.")
		return "", models.Identity{}, false
	}
	return token, id, true
}

// failure prints err inline. Server messages and validation messages are
// shown as is; anything else gets the fallback text.
func (s *Screens) failure(p *output.Printer, err error, fallback string) {
	var verr *ValidationError
	var aerr *api.Error
	switch {
	case errors.As(err, &verr):
		p.Error("%s", verr.Message)
	case errors.As(err, &aerr) && aerr.Message != "":
		p.Error("%s", aerr.Message)
	default:
		s.log.Warn(fallback, zap.Error(err))
		p.Error("%s", fallback)
	}
}

func projectID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &ValidationError{Field: "id", Message: "Invalid project id."}
	}
	return id, nil
}

func projectPath(id int64) string {
	return "/project/" + strconv.FormatInt(id, 10)
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', -1, 64)
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
