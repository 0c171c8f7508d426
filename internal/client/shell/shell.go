// Package shell runs the interactive command loop of the client.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/atinyakov/GigBid/internal/client/prompt"
	"github.com/atinyakov/GigBid/internal/session"
)

// App is the client the shell drives.
type App interface {
	Open(ctx context.Context, path string) error
	Submit(ctx context.Context, path string, form url.Values) error
	Drain(ctx context.Context) error
	Logout(ctx context.Context) error
	Session() session.Snapshot
	Current() string
	Whoami()
}

const helpText = `Available commands:
  help                          show this help
  open <path>                   open any screen, e.g. open /project/list
  home                          welcome screen
  login [email]                 log in
  signup                        create an account
  logout                        log out
  whoami                        show the logged in account
  dashboard                     your dashboard
  projects                      list projects
  project <id>                  project details
  create                        post a new project (buyers)
  bid <id> <amount> [message]   place or update your bid (sellers)
  withdraw <id>                 withdraw your bid (sellers)
  select <id> <bidId>           select the winning bid (buyers)
  deliver <id> <file>           upload the deliverable (selected seller)
  complete <id>                 mark the project as completed (buyers)
  exit                          leave the shell`

// Shell reads commands and turns them into screen requests.
type Shell struct {
	app App
	in  *prompt.Prompter
	out io.Writer
}

// New returns a shell reading commands from in.
func New(app App, in io.Reader, out io.Writer) *Shell {
	return &Shell{app: app, in: prompt.New(in, out), out: out}
}

// Run loops until exit, end of input or ctx is done. Navigations queued in
// the background are followed before each prompt.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.app.Drain(ctx); err != nil {
			fmt.Fprintln(s.out, err)
		}

		line, err := s.in.Line(s.promptText())
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		quit, err := s.Exec(ctx, args)
		if err != nil {
			fmt.Fprintln(s.out, err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) promptText() string {
	if snap := s.app.Session(); snap.Authenticated() {
		return "gigbid(" + snap.Identity.Name + ")> "
	}
	return "gigbid> "
}

// Exec runs one command. quit is true for exit.
func (s *Shell) Exec(ctx context.Context, args []string) (quit bool, err error) {
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "open":
		if len(args) < 2 {
			return false, s.usage("open <path>")
		}
		return false, s.app.Open(ctx, args[1])
	case "home":
		return false, s.app.Open(ctx, "/")
	case "login":
		return false, s.login(ctx, args[1:])
	case "signup":
		return false, s.signup(ctx)
	case "logout":
		return false, s.app.Logout(ctx)
	case "whoami":
		s.app.Whoami()
	case "dashboard":
		return false, s.app.Open(ctx, "/dashboard")
	case "projects":
		return false, s.app.Open(ctx, "/project/list")
	case "project":
		if len(args) < 2 {
			return false, s.usage("project <id>")
		}
		return false, s.app.Open(ctx, "/project/"+args[1])
	case "create":
		return false, s.create(ctx)
	case "bid":
		if len(args) < 3 {
			return false, s.usage("bid <id> <amount> [message]")
		}
		form := url.Values{"amount": {args[2]}, "message": {strings.Join(args[3:], " ")}}
		return false, s.app.Submit(ctx, "/project/"+args[1]+"/bid", form)
	case "withdraw":
		if len(args) < 2 {
			return false, s.usage("withdraw <id>")
		}
		ok, err := s.in.Confirm("Withdraw your bid on project " + args[1] + "?")
		if err != nil || !ok {
			return false, err
		}
		return false, s.app.Submit(ctx, "/project/"+args[1]+"/bid/withdraw", nil)
	case "select":
		if len(args) < 3 {
			return false, s.usage("select <id> <bidId>")
		}
		return false, s.app.Submit(ctx, "/project/"+args[1]+"/select", url.Values{"bidId": {args[2]}})
	case "deliver":
		if len(args) < 3 {
			return false, s.usage("deliver <id> <file>")
		}
		return false, s.app.Submit(ctx, "/project/"+args[1]+"/deliver", url.Values{"file": {args[2]}})
	case "complete":
		if len(args) < 2 {
			return false, s.usage("complete <id>")
		}
		return false, s.app.Submit(ctx, "/project/"+args[1]+"/complete", nil)
	case "exit", "quit":
		fmt.Fprintln(s.out, "Bye")
		return true, nil
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return false, nil
}

// form opens path and reports whether its form is showing. A guard may
// have sent the user elsewhere instead.
func (s *Shell) form(ctx context.Context, path string) (bool, error) {
	if err := s.app.Open(ctx, path); err != nil {
		return false, err
	}
	return s.app.Current() == path, nil
}

func (s *Shell) login(ctx context.Context, args []string) error {
	ok, err := s.form(ctx, "/login")
	if err != nil || !ok {
		return err
	}
	var email string
	if len(args) > 0 {
		email = args[0]
	} else if email, err = s.in.Line("Email: "); err != nil {
		return err
	}
	password, err := s.in.Password("Password: ")
	if err != nil {
		return err
	}
	return s.app.Submit(ctx, "/login", url.Values{"email": {email}, "password": {password}})
}

func (s *Shell) signup(ctx context.Context) error {
	ok, err := s.form(ctx, "/signup")
	if err != nil || !ok {
		return err
	}
	form := url.Values{}
	for _, q := range []struct{ key, label string }{
		{"name", "Name: "},
		{"email", "Email: "},
	} {
		v, err := s.in.Line(q.label)
		if err != nil {
			return err
		}
		form.Set(q.key, v)
	}
	password, err := s.in.Password("Password: ")
	if err != nil {
		return err
	}
	form.Set("password", password)
	role, err := s.in.Default("Role (BUYER/SELLER): ", "BUYER")
	if err != nil {
		return err
	}
	form.Set("role", role)
	return s.app.Submit(ctx, "/signup", form)
}

func (s *Shell) create(ctx context.Context) error {
	ok, err := s.form(ctx, "/project/create")
	if err != nil || !ok {
		return err
	}
	form := url.Values{}
	for _, q := range []struct{ key, label string }{
		{"title", "Title: "},
		{"description", "Description: "},
		{"budgetMin", "Budget range (min): "},
		{"budgetMax", "Budget range (max): "},
		{"deadline", "Deadline (YYYY-MM-DD): "},
	} {
		v, err := s.in.Line(q.label)
		if err != nil {
			return err
		}
		form.Set(q.key, v)
	}
	return s.app.Submit(ctx, "/project/create", form)
}

func (s *Shell) usage(u string) error {
	fmt.Fprintf(s.out, "Usage: %s\n", u)
	return nil
}
