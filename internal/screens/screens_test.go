package screens_test

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GigBid/internal/api"
	"github.com/atinyakov/GigBid/internal/api/apitest"
	"github.com/atinyakov/GigBid/internal/client/storage"
	"github.com/atinyakov/GigBid/internal/models"
	"github.com/atinyakov/GigBid/internal/output"
	"github.com/atinyakov/GigBid/internal/router"
	"github.com/atinyakov/GigBid/internal/screens"
	"github.com/atinyakov/GigBid/internal/session"
)

type env struct {
	srv   *apitest.Server
	app   *router.App
	store *session.Store
	creds *storage.Memory
	out   *bytes.Buffer
}

func newEnv(t *testing.T, token string) *env {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	app := router.New(out)
	client := api.New(srv.URL, srv.Client(), nil)
	creds := storage.NewMemory(token)
	store := session.New(creds, client, app)
	screens.New(client, store, app, output.NewPrinter(out, false)).Routes(app.Router())

	store.Initialize(context.Background())
	return &env{srv: srv, app: app, store: store, creds: creds, out: out}
}

func (e *env) loginAs(t *testing.T, id models.Identity) {
	t.Helper()
	snap := e.store.Authenticate(context.Background(), e.srv.TokenFor(id.ID, time.Hour))
	require.True(t, snap.Authenticated())
	require.NoError(t, e.app.Drain(context.Background()))
	e.out.Reset()
}

func (e *env) open(t *testing.T, path string) string {
	t.Helper()
	e.out.Reset()
	require.NoError(t, e.app.Open(context.Background(), path))
	return e.out.String()
}

func (e *env) submit(t *testing.T, path string, form url.Values) string {
	t.Helper()
	e.out.Reset()
	require.NoError(t, e.app.Submit(context.Background(), path, form))
	return e.out.String()
}

func (e *env) project(t *testing.T, buyer models.Identity, deadline time.Time) models.Project {
	t.Helper()
	return e.srv.AddProject(buyer.ID, models.Project{
		Title:       "Logo design",
		Description: "A new logo",
		BudgetMin:   100,
		BudgetMax:   300,
		Deadline:    deadline,
	})
}

func path(p models.Project, suffix string) string {
	return "/project/" + strconv.FormatInt(p.ID, 10) + suffix
}

func TestProtectedScreenWithoutCredential(t *testing.T) {
	e := newEnv(t, "")

	out := e.open(t, "/dashboard")
	assert.NotContains(t, out, "Welcome,")
	assert.NotContains(t, out, "Role:")
	assert.Contains(t, out, "Enter your email and password.")
	assert.Equal(t, "/login", e.app.Current())
}

func TestLoginScreenWhileAuthenticated(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer)
	e.loginAs(t, buyer)

	out := e.open(t, "/login")
	assert.NotContains(t, out, "Enter your email and password.")
	assert.Contains(t, out, "Welcome, A!")
	assert.Equal(t, "/dashboard", e.app.Current())
}

func TestHomeRedirectsAuthenticatedUser(t *testing.T) {
	e := newEnv(t, "")
	assert.Contains(t, e.open(t, "/"), "Welcome to GigBid")

	e.loginAs(t, e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer))
	out := e.open(t, "/")
	assert.NotContains(t, out, "Welcome to GigBid")
	assert.Equal(t, "/dashboard", e.app.Current())
}

func TestPersistedCredentialResolves(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	buyer := srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer)
	token := srv.TokenFor(buyer.ID, time.Hour)

	out := &bytes.Buffer{}
	app := router.New(out)
	client := api.New(srv.URL, srv.Client(), nil)
	store := session.New(storage.NewMemory(token), client, app)
	screens.New(client, store, app, output.NewPrinter(out, false)).Routes(app.Router())

	snap := store.Initialize(context.Background())
	require.Equal(t, session.StatusPresent, snap.Status)
	require.NoError(t, app.Open(context.Background(), "/dashboard"))
	assert.Contains(t, out.String(), "Welcome, A!")
	assert.Contains(t, out.String(), "Email: a@b.com")
	assert.Contains(t, out.String(), "GigBid | Welcome, A (BUYER) | logout")
}

func TestExpiredCredentialRedirectsToLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	buyer := srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer)

	out := &bytes.Buffer{}
	app := router.New(out)
	client := api.New(srv.URL, srv.Client(), nil)
	creds := storage.NewMemory(srv.TokenFor(buyer.ID, -time.Minute))
	store := session.New(creds, client, app)
	screens.New(client, store, app, output.NewPrinter(out, false)).Routes(app.Router())

	snap := store.Initialize(context.Background())
	assert.Equal(t, session.StatusAbsent, snap.Status)
	tok, err := creds.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, app.Open(context.Background(), "/project/list"))
	assert.Equal(t, "/login", app.Current())
	assert.NotContains(t, out.String(), "Projects")
}

func TestLogin(t *testing.T) {
	e := newEnv(t, "")
	e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer)

	out := e.submit(t, "/login", url.Values{"email": {"a@b.com"}, "password": {"pw"}})
	assert.Contains(t, out, "[OK] Logged in as A.")
	assert.Equal(t, 1, strings.Count(out, "Welcome, A!"), "landing screen rendered once")
	assert.Equal(t, "/dashboard", e.app.Current())

	tok, err := e.creds.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		want      string
		wantCalls int
	}{
		{
			name:      "wrong password",
			form:      url.Values{"email": {"a@b.com"}, "password": {"nope"}},
			want:      "[ERROR] Invalid credentials",
			wantCalls: 1,
		},
		{
			name: "missing password",
			form: url.Values{"email": {"a@b.com"}},
			want: "[ERROR] Password is required.",
		},
		{
			name: "missing email",
			form: url.Values{"password": {"pw"}},
			want: "[ERROR] Email is required.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "")
			e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer)

			out := e.submit(t, "/login", tt.form)
			assert.Contains(t, out, tt.want)
			assert.Equal(t, tt.wantCalls, e.srv.Calls("POST", "/auth/login"))
			assert.Equal(t, "/login", e.app.Current())
			assert.False(t, e.store.Snapshot().Authenticated())
		})
	}
}

func TestSignup(t *testing.T) {
	e := newEnv(t, "")

	out := e.submit(t, "/signup", url.Values{
		"name": {"Sam"}, "email": {"sam@x.io"}, "password": {"pw"}, "role": {"seller"},
	})
	assert.Contains(t, out, "Logged in as Sam.")
	_, id, err := e.store.RequireIdentity()
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, id.Role)
	assert.Contains(t, out, "Type projects to find projects to bid on.")
}

func TestSignupFailures(t *testing.T) {
	e := newEnv(t, "")
	e.srv.AddUser("sam@x.io", "pw", "Sam", models.RoleSeller)

	out := e.submit(t, "/signup", url.Values{
		"name": {"Sam"}, "email": {"new@x.io"}, "password": {"pw"}, "role": {"admin"},
	})
	assert.Contains(t, out, "Role must be BUYER or SELLER.")
	assert.Equal(t, 0, e.srv.Calls("POST", "/auth/signup"))

	out = e.submit(t, "/signup", url.Values{
		"name": {"Sam"}, "email": {"sam@x.io"}, "password": {"pw"}, "role": {"SELLER"},
	})
	assert.Contains(t, out, "User already exists")
	assert.Equal(t, "/signup", e.app.Current())
}

func TestLogout(t *testing.T) {
	e := newEnv(t, "")
	e.loginAs(t, e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer))

	out := e.submit(t, "/logout", nil)
	assert.Contains(t, out, "Logged out.")
	assert.Contains(t, out, "GigBid | login | signup")
	assert.Equal(t, "/login", e.app.Current())
	assert.Equal(t, session.StatusAbsent, e.store.Snapshot().Status)
}

func TestMountedScreenRedirectsOnDeauthenticate(t *testing.T) {
	e := newEnv(t, "")
	e.loginAs(t, e.srv.AddUser("a@b.com", "pw", "A", models.RoleBuyer))
	e.open(t, "/dashboard")

	e.store.Deauthenticate()
	assert.Equal(t, []string{"/login"}, e.app.Pending(), "store and guard redirects are coalesced")
}

func TestProjectList(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	e.loginAs(t, buyer)

	assert.Contains(t, e.open(t, "/project/list"), "No projects available.")

	e.project(t, buyer, time.Now().Add(48*time.Hour))
	out := e.open(t, "/project/list")
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Logo design")
	assert.Contains(t, out, "$100 - $300")
	assert.Contains(t, out, "Bea (b@x.io)")
	assert.Contains(t, out, "1 project(s)")
}

func TestProjectDetail(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	seller := e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller)
	p := e.project(t, buyer, time.Now().Add(48*time.Hour))
	e.loginAs(t, seller)

	out := e.open(t, path(p, ""))
	assert.Contains(t, out, "Logo design")
	assert.Contains(t, out, "No bids have been placed yet.")
	assert.Contains(t, out, "Place a Bid")
	assert.Contains(t, out, "bid "+strconv.FormatInt(p.ID, 10)+" <amount> [message]")

	assert.Contains(t, e.open(t, "/project/abc"), "Invalid project id.")
	assert.Contains(t, e.open(t, "/project/999"), "Project not found")
}

func TestCreateProject(t *testing.T) {
	e := newEnv(t, "")
	e.loginAs(t, e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer))

	out := e.open(t, "/project/create")
	assert.Contains(t, out, "Create a New Project")

	deadline := time.Now().AddDate(0, 0, 10).Format(time.DateOnly)
	out = e.submit(t, "/project/create", url.Values{
		"title": {"Landing page"}, "description": {"One pager"},
		"budgetMin": {"200"}, "budgetMax": {"400"}, "deadline": {deadline},
	})
	assert.Contains(t, out, "Project created successfully!")
	assert.Contains(t, out, "Landing page")
	assert.Equal(t, "/project/list", e.app.Current())
	assert.Equal(t, 1, e.srv.Calls("GET", "/project/{id}"), "created project is re-fetched")
	assert.Less(t, strings.Index(out, "Project created successfully!"), strings.Index(out, "TITLE"))
}

func TestCreateProjectValidation(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1).Format(time.DateOnly)
	nextWeek := time.Now().AddDate(0, 0, 7).Format(time.DateOnly)
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "missing title",
			form: url.Values{"description": {"d"}, "budgetMin": {"1"}, "budgetMax": {"2"}, "deadline": {nextWeek}},
			want: "Title is required.",
		},
		{
			name: "budget not a number",
			form: url.Values{"title": {"t"}, "description": {"d"}, "budgetMin": {"lots"}, "budgetMax": {"2"}, "deadline": {nextWeek}},
			want: "Minimum budget must be a number of at least 0.",
		},
		{
			name: "max below min",
			form: url.Values{"title": {"t"}, "description": {"d"}, "budgetMin": {"50"}, "budgetMax": {"20"}, "deadline": {nextWeek}},
			want: "Maximum budget must not be less than the minimum.",
		},
		{
			name: "deadline format",
			form: url.Values{"title": {"t"}, "description": {"d"}, "budgetMin": {"1"}, "budgetMax": {"2"}, "deadline": {"next friday"}},
			want: "Deadline must be a date in YYYY-MM-DD format.",
		},
		{
			name: "deadline in the past",
			form: url.Values{"title": {"t"}, "description": {"d"}, "budgetMin": {"1"}, "budgetMax": {"2"}, "deadline": {yesterday}},
			want: "Deadline must not be in the past.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "")
			e.loginAs(t, e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer))

			out := e.submit(t, "/project/create", tt.form)
			assert.Contains(t, out, "[ERROR] "+tt.want)
			assert.Equal(t, 0, e.srv.Calls("POST", "/project/create"))
			assert.Equal(t, "/project/create", e.app.Current())
		})
	}
}

func TestCreateProjectRedirectsSellers(t *testing.T) {
	e := newEnv(t, "")
	e.loginAs(t, e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller))

	out := e.open(t, "/project/create")
	assert.NotContains(t, out, "Create a New Project")
	assert.Equal(t, "/dashboard", e.app.Current())

	e.submit(t, "/project/create", url.Values{"title": {"t"}})
	assert.Equal(t, 0, e.srv.Calls("POST", "/project/create"))
}

func TestPlaceAndUpdateBid(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	seller := e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller)
	p := e.project(t, buyer, time.Now().Add(48*time.Hour))
	e.loginAs(t, seller)

	out := e.submit(t, path(p, "/bid"), url.Values{"amount": {"150"}, "message": {"I can do it"}})
	assert.Contains(t, out, "[OK] Bid placed successfully!")
	assert.Contains(t, out, "I can do it")
	assert.Contains(t, out, "Edit Your Bid")
	assert.Equal(t, 2, e.srv.Calls("GET", "/project/{id}"), "project loaded and re-fetched")
	assert.Less(t, strings.Index(out, "Bid placed successfully!"), strings.Index(out, "I can do it"))

	out = e.submit(t, path(p, "/bid"), url.Values{"amount": {"120.5"}, "message": {"Discount"}})
	assert.Contains(t, out, "[OK] Bid updated successfully!")
	assert.Equal(t, 1, e.srv.Calls("PUT", "/project/bid"))

	stored, ok := e.srv.Project(p.ID)
	require.True(t, ok)
	require.Len(t, stored.Bids, 1)
	assert.Equal(t, 120.5, stored.Bids[0].Amount)
	assert.Equal(t, "Discount", stored.Bids[0].Message)
}

func TestPlaceBidValidation(t *testing.T) {
	tests := []struct {
		name   string
		role   models.Role
		amount string
		want   string
	}{
		{name: "not a number", role: models.RoleSeller, amount: "lots", want: "Please enter a valid bid amount greater than 0."},
		{name: "zero", role: models.RoleSeller, amount: "0", want: "Please enter a valid bid amount greater than 0."},
		{name: "negative", role: models.RoleSeller, amount: "-5", want: "Please enter a valid bid amount greater than 0."},
		{name: "buyer", role: models.RoleBuyer, amount: "10", want: "Only sellers can place bids."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, "")
			buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
			p := e.project(t, buyer, time.Now().Add(48*time.Hour))
			e.loginAs(t, e.srv.AddUser("u@x.io", "pw", "U", tt.role))

			out := e.submit(t, path(p, "/bid"), url.Values{"amount": {tt.amount}})
			assert.Contains(t, out, "[ERROR] "+tt.want)
			assert.Equal(t, 0, e.srv.Calls("GET", "/project/{id}"), "no network call before validation passes")
			assert.Equal(t, 0, e.srv.Calls("POST", "/project/bid"))
			assert.True(t, e.store.Snapshot().Authenticated(), "input errors never touch the session")
		})
	}
}

func TestBiddingClosed(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	p := e.project(t, buyer, time.Now().Add(-time.Hour))
	e.loginAs(t, e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller))

	out := e.open(t, path(p, ""))
	assert.Contains(t, out, "Bidding is closed for this project.")
	assert.NotContains(t, out, "Place a Bid")

	out = e.submit(t, path(p, "/bid"), url.Values{"amount": {"10"}})
	assert.Contains(t, out, "[ERROR] Bidding is closed for this project.")
	assert.Equal(t, 0, e.srv.Calls("POST", "/project/bid"))
}

func TestWithdrawBid(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	p := e.project(t, buyer, time.Now().Add(48*time.Hour))
	e.loginAs(t, e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller))

	out := e.submit(t, path(p, "/bid/withdraw"), nil)
	assert.Contains(t, out, "You have not placed a bid on this project.")

	e.submit(t, path(p, "/bid"), url.Values{"amount": {"10"}})
	out = e.submit(t, path(p, "/bid/withdraw"), nil)
	assert.Contains(t, out, "[OK] Bid withdrawn.")
	assert.Contains(t, out, "No bids have been placed yet.")
	assert.Equal(t, 1, e.srv.Calls("DELETE", "/project/bid"))
}

func TestProjectLifecycle(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	seller := e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller)
	p := e.project(t, buyer, time.Now().Add(48*time.Hour))
	id := strconv.FormatInt(p.ID, 10)

	e.loginAs(t, seller)
	e.submit(t, path(p, "/bid"), url.Values{"amount": {"250"}})
	stored, _ := e.srv.Project(p.ID)
	bidID := strconv.FormatInt(stored.Bids[0].ID, 10)

	e.loginAs(t, buyer)
	out := e.open(t, path(p, ""))
	assert.Contains(t, out, "select "+id+" <bidId>")

	out = e.submit(t, path(p, "/select"), url.Values{"bidId": {"999"}})
	assert.Contains(t, out, "[ERROR] Bid not found")

	out = e.submit(t, path(p, "/select"), url.Values{"bidId": {bidID}})
	assert.Contains(t, out, "[OK] Bid selected.")
	assert.Contains(t, out, "[ASSIGNED]")
	assert.Contains(t, out, "selected")

	out = e.submit(t, path(p, "/complete"), nil)
	assert.Contains(t, out, "[ERROR] Project has no deliverable yet")

	e.loginAs(t, seller)
	out = e.open(t, path(p, ""))
	assert.Contains(t, out, "deliver "+id+" <file>")

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	out = e.submit(t, path(p, "/deliver"), url.Values{"file": {empty}})
	assert.Contains(t, out, "is empty.")
	assert.Equal(t, 0, e.srv.Calls("POST", "/project/deliver"))

	out = e.submit(t, path(p, "/deliver"), url.Values{"file": {t.TempDir()}})
	assert.Contains(t, out, "is not a regular file.")

	file := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(file, []byte("PNG..."), 0o600))
	out = e.submit(t, path(p, "/deliver"), url.Values{"file": {file}})
	assert.Contains(t, out, "[OK] Deliverable uploaded.")
	assert.Contains(t, out, "logo.png")

	e.loginAs(t, buyer)
	out = e.open(t, path(p, ""))
	assert.Contains(t, out, "complete "+id)

	before := e.srv.Calls("GET", "/project/{id}")
	out = e.submit(t, path(p, "/complete"), nil)
	assert.Contains(t, out, "[OK] Project marked as completed.")
	assert.Contains(t, out, "[COMPLETED]")
	assert.Equal(t, before+1, e.srv.Calls("GET", "/project/{id}"))
}

func TestRoleChecksOnActions(t *testing.T) {
	e := newEnv(t, "")
	buyer := e.srv.AddUser("b@x.io", "pw", "Bea", models.RoleBuyer)
	p := e.project(t, buyer, time.Now().Add(48*time.Hour))

	e.loginAs(t, e.srv.AddUser("s@x.io", "pw", "Sam", models.RoleSeller))
	assert.Contains(t, e.submit(t, path(p, "/select"), url.Values{"bidId": {"1"}}), "Only buyers can select a bid.")
	assert.Contains(t, e.submit(t, path(p, "/complete"), nil), "Only buyers can complete projects.")

	e.loginAs(t, buyer)
	assert.Contains(t, e.submit(t, path(p, "/deliver"), url.Values{"file": {"x"}}), "Only sellers can upload deliverables.")
	assert.Contains(t, e.submit(t, path(p, "/bid/withdraw"), nil), "Only sellers can withdraw bids.")
	assert.Contains(t, e.submit(t, path(p, "/select"), url.Values{"bidId": {"zero"}}), "Invalid bid id.")
	assert.Equal(t, 0, e.srv.Calls("POST", "/project/select-bid"))
}
