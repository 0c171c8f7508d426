// Package session owns the client's authentication state: the bearer
// credential, the identity resolved from it and the resolution status.
//
// A Store is the only writer of that state. Every change of the credential
// value starts a new generation, and a resolution result is applied only if
// its generation is still current. This is what makes a logout during an
// in-flight whoami call safe.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/atinyakov/GigBid/internal/models"
)

// Default navigation targets.
const (
	DefaultLoginPath   = "/login"
	DefaultLandingPath = "/dashboard"
)

// DefaultResolveTimeout bounds a whoami call that no caller waits for anymore.
const DefaultResolveTimeout = 30 * time.Second

// CredentialStorage persists the credential across process restarts.
type CredentialStorage interface {
	// Load returns the stored credential or "" when there is none.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Resolver maps a credential to the identity behind it.
type Resolver interface {
	Me(ctx context.Context, token string) (models.Identity, error)
}

// Navigator moves the client to another screen.
type Navigator interface {
	Navigate(path string)
}

// Store is the process-wide authority for who is logged in.
type Store struct {
	storage  CredentialStorage
	resolver Resolver
	nav      Navigator
	log      *zap.Logger

	loginPath   string
	landingPath string

	resolveTimeout time.Duration
	flights        singleflight.Group

	// writeMu orders storage writes with the state changes they belong to.
	// It is taken before mu.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     Snapshot
	changed   chan struct{}
	subs      map[int]func(Snapshot)
	nextSubID int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithResolveTimeout bounds each whoami call.
func WithResolveTimeout(d time.Duration) Option {
	return func(s *Store) { s.resolveTimeout = d }
}

// WithLoginPath sets where the store navigates after logout or a failed
// start-up resolution.
func WithLoginPath(path string) Option {
	return func(s *Store) { s.loginPath = path }
}

// WithLandingPath sets where the store navigates after a successful login.
func WithLandingPath(path string) Option {
	return func(s *Store) { s.landingPath = path }
}

// New returns a Store in the unresolved state. Call Initialize to load the
// persisted credential.
func New(storage CredentialStorage, resolver Resolver, nav Navigator, opts ...Option) *Store {
	s := &Store{
		storage:        storage,
		resolver:       resolver,
		nav:            nav,
		log:            zap.NewNop(),
		loginPath:      DefaultLoginPath,
		landingPath:    DefaultLandingPath,
		resolveTimeout: DefaultResolveTimeout,
		changed:        make(chan struct{}),
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to be called with every new snapshot. Calls happen
// outside the store's lock, on the goroutine that caused the change.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Wait blocks until the session leaves StatusUnresolved or ctx is done.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap, ch := s.state, s.changed
		s.mu.Unlock()
		if snap.Status != StatusUnresolved {
			return snap, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Initialize reads the persisted credential and resolves its identity. It
// is safe to call repeatedly and concurrently: callers that find a
// resolution for the same credential in flight join it instead of issuing
// another whoami call, and a credential that is already resolved is left
// alone. A failed resolution clears the credential and navigates to the
// login screen.
//
// When ctx is done first, Initialize returns the unresolved snapshot and
// the resolution completes in the background.
func (s *Store) Initialize(ctx context.Context) Snapshot {
	s.writeMu.Lock()
	token, err := s.storage.Load()
	if err != nil {
		s.log.Warn("failed to read persisted credential", zap.Error(err))
		token = ""
	}

	s.mu.Lock()
	cur := s.state
	var flight <-chan singleflight.Result
	switch {
	case token == "":
		if cur.Credential == "" && cur.Status == StatusAbsent {
			s.mu.Unlock()
			s.writeMu.Unlock()
			return cur
		}
		snap := s.setLocked("", nil, StatusAbsent, cur.Credential != "")
		s.mu.Unlock()
		s.writeMu.Unlock()
		s.publish(snap)
		return snap
	case token == cur.Credential && cur.Status != StatusUnresolved:
		s.mu.Unlock()
		s.writeMu.Unlock()
		return cur
	case token == cur.Credential:
		// join the resolution already in flight
		flight = s.resolveLocked(ctx, cur.Generation, token, nil)
		s.mu.Unlock()
		s.writeMu.Unlock()
	default:
		snap := s.setLocked(token, nil, StatusUnresolved, true)
		flight = s.resolveLocked(ctx, snap.Generation, token, func(res Snapshot) {
			if res.Status == StatusAbsent {
				s.navigate(s.loginPath)
			}
		})
		s.mu.Unlock()
		s.writeMu.Unlock()
		s.publish(snap)
	}
	return s.await(ctx, flight)
}

// Authenticate persists a freshly issued credential and resolves its
// identity. On success it navigates to the landing screen exactly once. A
// resolution failure leaves the session resolved-absent without an error:
// the returned snapshot simply carries no identity.
func (s *Store) Authenticate(ctx context.Context, token string) Snapshot {
	if token == "" {
		s.log.Warn("authenticate called with empty credential")
		return s.Snapshot()
	}

	s.writeMu.Lock()
	if err := s.storage.Save(token); err != nil {
		s.log.Error("failed to persist credential", zap.Error(err))
	}
	s.mu.Lock()
	snap := s.setLocked(token, nil, StatusUnresolved, true)
	flight := s.resolveLocked(ctx, snap.Generation, token, func(res Snapshot) {
		if res.Status == StatusPresent {
			s.navigate(s.landingPath)
		}
	})
	s.mu.Unlock()
	s.writeMu.Unlock()
	s.publish(snap)

	return s.await(ctx, flight)
}

// Deauthenticate forgets the credential and identity and navigates to the
// login screen. Any resolution still in flight for the old credential is
// discarded when it returns.
func (s *Store) Deauthenticate() {
	s.writeMu.Lock()
	s.mu.Lock()
	snap := s.setLocked("", nil, StatusAbsent, true)
	s.mu.Unlock()
	if err := s.storage.Clear(); err != nil {
		s.log.Error("failed to clear persisted credential", zap.Error(err))
	}
	s.writeMu.Unlock()

	s.publish(snap)
	s.navigate(s.loginPath)
}

// resolveLocked joins or starts the whoami call for generation gen. The call
// applies its own result before the flight ends, so a caller that sees the
// generation unresolved under s.mu always finds the flight still running.
// then runs once, after a result was applied. s.mu must be held.
//
// The call outlives the caller's ctx: an aborted caller stops waiting but
// does not decide the session.
func (s *Store) resolveLocked(ctx context.Context, gen uint64, token string, then func(Snapshot)) <-chan singleflight.Result {
	return s.flights.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.resolveTimeout)
		defer cancel()
		id, err := s.resolver.Me(rctx, token)

		snap, applied := s.apply(gen, token, id, err)
		if applied && then != nil {
			then(snap)
		}
		return snap, nil
	})
}

// apply installs a resolution result if gen is still the current,
// unresolved generation. applied reports whether the session changed.
func (s *Store) apply(gen uint64, token string, id models.Identity, err error) (Snapshot, bool) {
	log := s.log.With(zap.Uint64("generation", gen))

	// a failure clears storage, which must not overtake a newer Save
	s.writeMu.Lock()
	s.mu.Lock()
	if s.state.Generation != gen || s.state.Status != StatusUnresolved {
		cur := s.state
		s.mu.Unlock()
		s.writeMu.Unlock()
		log.Debug("discarding stale identity resolution")
		return cur, false
	}

	var snap Snapshot
	if err != nil {
		log.Info("identity resolution failed", zap.Error(err))
		snap = s.setLocked("", nil, StatusAbsent, true)
		s.mu.Unlock()
		if err := s.storage.Clear(); err != nil {
			s.log.Error("failed to clear persisted credential", zap.Error(err))
		}
	} else {
		snap = s.setLocked(token, &id, StatusPresent, false)
		s.mu.Unlock()
		log.Debug("identity resolved", zap.Int64("user_id", id.ID), zap.String("role", string(id.Role)))
	}
	s.writeMu.Unlock()
	s.publish(snap)
	return snap, true
}

// await returns the outcome of flight, or the current snapshot once ctx is
// done.
func (s *Store) await(ctx context.Context, flight <-chan singleflight.Result) Snapshot {
	select {
	case res := <-flight:
		return res.Val.(Snapshot)
	case <-ctx.Done():
		s.log.Debug("stopped waiting for identity resolution", zap.Error(ctx.Err()))
		return s.Snapshot()
	}
}

// setLocked installs a new state. newGen starts a new credential
// generation. s.mu must be held.
func (s *Store) setLocked(token string, id *models.Identity, status Status, newGen bool) Snapshot {
	if token == "" {
		id = nil
	}
	next := Snapshot{
		Credential: token,
		Identity:   id,
		Status:     status,
		Generation: s.state.Generation,
		Version:    s.state.Version + 1,
	}
	if newGen {
		next.Generation++
	}
	s.state = next
	close(s.changed)
	s.changed = make(chan struct{})
	return next
}

func (s *Store) publish(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) navigate(path string) {
	if s.nav == nil || path == "" {
		return
	}
	s.nav.Navigate(path)
}

// ErrNoIdentity is returned by RequireIdentity when nobody is logged in.
var ErrNoIdentity = errors.New("not authenticated")

// RequireIdentity returns the current credential and identity, or
// ErrNoIdentity when the session is not resolved-present.
func (s *Store) RequireIdentity() (string, models.Identity, error) {
	snap := s.Snapshot()
	if snap.Status != StatusPresent || snap.Identity == nil {
		return "", models.Identity{}, ErrNoIdentity
	}
	return snap.Credential, *snap.Identity, nil
}
