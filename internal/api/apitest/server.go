// Package apitest provides an in-memory fake of the marketplace API for
// tests. It issues HS256 JWTs as credentials, so expired or forged tokens
// are rejected with 401 the way the real API rejects them.
package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atinyakov/GigBid/internal/models"
)

// DefaultTokenTTL is the lifetime of tokens issued by login and signup.
const DefaultTokenTTL = time.Hour

type account struct {
	models.Identity
	password string
}

// Server is a running fake API. URL is the base URL to hand to api.New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	secret   []byte
	accounts map[int64]*account
	projects map[int64]*models.Project
	nextID   int64
	calls    map[string]int
	meHook   func()
}

// NewServer starts a fake API on a loopback port.
func NewServer() *Server {
	s := &Server{
		secret:   []byte(uuid.NewString()),
		accounts: make(map[int64]*account),
		projects: make(map[int64]*models.Project),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.countCalls)
	r.Use(bearerAuth(s.verify, "/auth/login", "/auth/signup"))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/signup", s.signup)
		r.Get("/me", s.me)
	})
	r.Route("/project", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Post("/create", s.createProject)
		r.Post("/bid", s.placeBid)
		r.Put("/bid", s.updateBid)
		r.Delete("/bid", s.deleteBid)
		r.Post("/select-bid", s.selectBid)
		r.Post("/deliver", s.deliver)
		r.Post("/complete", s.complete)
		r.Get("/{id}", s.getProject)
	})
	return r
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.mu.Lock()
		s.calls[r.Method+" "+route]++
		s.mu.Unlock()
	})
}

// Calls returns how many requests hit method and route pattern, for
// example Calls("GET", "/project/{id}").
func (s *Server) Calls(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+route]
}

// OnMe registers fn to run at the start of every GET /auth/me, before the
// response is written. Tests use it to hold a resolution in flight.
func (s *Server) OnMe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meHook = fn
}

// AddUser registers an account and returns its identity.
func (s *Server) AddUser(email, password, name string, role models.Role) models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password, name, role)
}

func (s *Server) addUserLocked(email, password, name string, role models.Role) models.Identity {
	s.nextID++
	a := &account{
		Identity: models.Identity{ID: s.nextID, Email: email, Name: name, Role: role},
		password: password,
	}
	s.accounts[a.ID] = a
	return a.Identity
}

// TokenFor issues a credential for userID that expires after ttl. A
// negative ttl yields an already expired token.
func (s *Server) TokenFor(userID int64, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return tok
}

func (s *Server) verify(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	var id int64
	if _, err := fmt.Sscan(claims.Subject, &id); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return 0, errors.New("unknown subject")
	}
	return id, nil
}

// AddProject stores p as owned by buyerID and returns the stored copy.
func (s *Server) AddProject(buyerID int64, p models.Project) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	p.Buyer = s.partyLocked(buyerID)
	if p.Status == "" {
		p.Status = models.StatusOpen
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.projects[p.ID] = &p
	return cloneProject(&p)
}

// Project returns the current server-side state of a project.
func (s *Server) Project(id int64) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, false
	}
	return cloneProject(p), true
}

func (s *Server) partyLocked(id int64) models.Party {
	a, ok := s.accounts[id]
	if !ok {
		return models.Party{ID: id}
	}
	return models.Party{ID: a.ID, Name: a.Name, Email: a.Email}
}

func cloneProject(p *models.Project) models.Project {
	c := *p
	c.Bids = append([]models.Bid(nil), p.Bids...)
	if p.SelectedBidID != nil {
		id := *p.SelectedBidID
		c.SelectedBidID = &id
	}
	if p.Deliverable != nil {
		d := *p.Deliverable
		c.Deliverable = &d
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
