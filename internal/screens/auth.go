package screens

import (
	"net/http"
	"strings"

	"github.com/atinyakov/GigBid/internal/api"
	"github.com/atinyakov/GigBid/internal/models"
)

func (s *Screens) home(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	p.Header("Welcome to GigBid")
	p.Print("Post projects as a buyer or bid on them as a seller.")
	p.Print("Type %s to create an account or %s to sign in.", p.Bold("signup"), p.Bold("login"))
}

func (s *Screens) loginForm(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	p.Header("Login")
	p.Print("Enter your email and password.")
}

func (s *Screens) login(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	p.Header("Login")

	if err := r.ParseForm(); err != nil {
		s.failure(p, err, "Something went wrong")
		return
	}
	req := api.LoginRequest{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	if err := firstError(required("email", req.Email), required("password", req.Password)); err != nil {
		s.failure(p, err, "Something went wrong")
		return
	}

	token, err := s.api.Login(r.Context(), req)
	if err != nil {
		s.failure(p, err, "Failed to login. Please check your credentials.")
		return
	}
	s.authenticate(w, r, token)
}

func (s *Screens) signupForm(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	p.Header("Sign up")
	p.Print("Enter your name, email, password and role (BUYER or SELLER).")
}

func (s *Screens) signup(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	p.Header("Sign up")

	if err := r.ParseForm(); err != nil {
		s.failure(p, err, "Something went wrong")
		return
	}
	req := api.SignupRequest{
		Name:     strings.TrimSpace(r.PostForm.Get("name")),
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	role, roleErr := ParseRole(r.PostForm.Get("role"))
	req.Role = role
	err := firstError(
		required("name", req.Name),
		required("email", req.Email),
		required("password", req.Password),
		roleErr,
	)
	if err != nil {
		s.failure(p, err, "Something went wrong")
		return
	}

	token, err := s.api.Signup(r.Context(), req)
	if err != nil {
		s.failure(p, err, "Failed to sign up. Please try again.")
		return
	}
	s.authenticate(w, r, token)
}

// authenticate hands a fresh credential to the store. The store and this
// screen's guard both navigate to the landing screen on success.
func (s *Screens) authenticate(w http.ResponseWriter, r *http.Request, token string) {
	p := s.printer.To(w)
	snap := s.store.Authenticate(r.Context(), token)
	if !snap.Authenticated() {
		p.Error("Could not load your profile. Please log in again.")
		return
	}
	p.Success("Logged in as %s.", snap.Identity.Name)
}

func (s *Screens) dashboard(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	_, id, ok := s.identity(p)
	if !ok {
		return
	}

	p.Header("Dashboard")
	p.Print("Welcome, %s!", id.Name)
	p.Print("Role: %s", id.Role)
	p.Print("Email: %s", id.Email)
	p.Print("")
	switch id.Role {
	case models.RoleBuyer:
		p.Print("Type %s to post a project or %s to see all projects.", p.Bold("create"), p.Bold("projects"))
	case models.RoleSeller:
		p.Print("Type %s to find projects to bid on.", p.Bold("projects"))
	}
}

func (s *Screens) logout(w http.ResponseWriter, r *http.Request) {
	s.store.Deauthenticate()
	s.printer.To(w).Success("Logged out.")
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
