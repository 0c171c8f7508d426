package screens

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GigBid/internal/api"
	"github.com/atinyakov/GigBid/internal/models"
	"github.com/atinyakov/GigBid/internal/output"
)

func (s *Screens) projectList(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	token, _, ok := s.identity(p)
	if !ok {
		return
	}

	projects, err := s.api.ListProjects(r.Context(), token)
	p.Header("Projects")
	if err != nil {
		s.failure(p, err, "Failed to fetch projects")
		return
	}
	if len(projects) == 0 {
		p.Print("No projects available.")
		return
	}

	tbl := output.NewTable(p.Writer(), []string{"id", "title", "budget", "deadline", "status", "posted by", "created"})
	for _, pr := range projects {
		tbl.AddRow(
			strconv.FormatInt(pr.ID, 10),
			pr.Title,
			money(pr.BudgetMin)+" - "+money(pr.BudgetMax),
			date(pr.Deadline),
			string(pr.Status),
			pr.Buyer.Name+" ("+pr.Buyer.Email+")",
			date(pr.CreatedAt),
		)
	}
	if err := tbl.Render(); err != nil {
		s.log.Warn("render project table", zap.Error(err))
	}
	p.Print("%s", p.Dim(strconv.Itoa(tbl.Len())+" project(s)"))
	p.Print("")
	p.Print("Type %s to open a project.", p.Bold("project <id>"))
}

// buyerOnly sends everyone but buyers to the landing screen.
func (s *Screens) buyerOnly(id models.Identity) bool {
	if id.Role != models.RoleBuyer {
		s.nav.Navigate(s.landingPath)
		return false
	}
	return true
}

func (s *Screens) createForm(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	_, id, ok := s.identity(p)
	if !ok || !s.buyerOnly(id) {
		return
	}
	s.navbar(p)
	p.Header("Create a New Project")
	p.Print("Enter the title, description, budget range and deadline (YYYY-MM-DD).")
}

func (s *Screens) createProject(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	token, id, ok := s.identity(p)
	if !ok || !s.buyerOnly(id) {
		return
	}
	s.navbar(p)
	p.Header("Create a New Project")

	if err := r.ParseForm(); err != nil {
		s.failure(p, err, "Failed to create project")
		return
	}
	f := r.PostForm
	req := api.CreateProjectRequest{
		Title:       strings.TrimSpace(f.Get("title")),
		Description: strings.TrimSpace(f.Get("description")),
	}
	var err error
	if err = firstError(required("title", req.Title), required("description", req.Description)); err == nil {
		req.BudgetMin, req.BudgetMax, err = ParseBudget(f.Get("budgetMin"), f.Get("budgetMax"))
	}
	if err == nil {
		req.Deadline, err = ParseDeadline(f.Get("deadline"), s.now())
	}
	if err != nil {
		s.failure(p, err, "Failed to create project")
		return
	}

	created, err := s.api.CreateProject(r.Context(), token, req)
	if err != nil {
		s.failure(p, err, "Failed to create project")
		return
	}
	if _, err := s.api.GetProject(r.Context(), token, created.ID); err != nil {
		s.failure(p, err, "Failed to fetch project")
		return
	}
	p.Success("Project created successfully!")
	s.nav.Navigate("/project/list")
}

func (s *Screens) projectDetail(w http.ResponseWriter, r *http.Request) {
	p := s.printer.To(w)
	s.navbar(p)
	token, id, ok := s.identity(p)
	if !ok {
		return
	}
	pid, err := projectID(r)
	if err != nil {
		s.failure(p, err, "Failed to fetch project")
		return
	}
	project, err := s.api.GetProject(r.Context(), token, pid)
	if err != nil {
		s.failure(p, err, "Failed to fetch project")
		return
	}
	s.renderProject(p, project, id)
}

// mutation is one project action. check validates the form before any
// network call; run performs the action and returns the success message.
// If load is set, run gets the project as it was before the action.
type mutation struct {
	fallback string
	load     bool
	check    func(id models.Identity, form url.Values) error
	run      func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error)
}

// mutate runs m and, if it succeeds, re-fetches the project and renders it
// under the success message.
func (s *Screens) mutate(w http.ResponseWriter, r *http.Request, m mutation) {
	p := s.printer.To(w)
	s.navbar(p)
	token, id, ok := s.identity(p)
	if !ok {
		return
	}
	pid, err := projectID(r)
	if err == nil {
		err = r.ParseForm()
	}
	if err == nil && m.check != nil {
		err = m.check(id, r.PostForm)
	}
	if err != nil {
		s.failure(p, err, m.fallback)
		return
	}

	project := models.Project{ID: pid}
	if m.load {
		if project, err = s.api.GetProject(r.Context(), token, pid); err != nil {
			s.failure(p, err, "Failed to fetch project")
			return
		}
	}

	msg, err := m.run(r.Context(), token, id, project)
	if err != nil {
		s.failure(p, err, m.fallback)
		return
	}

	refreshed, err := s.api.GetProject(r.Context(), token, pid)
	if err != nil {
		s.failure(p, err, "Failed to fetch project")
		return
	}
	p.Success("%s", msg)
	s.renderProject(p, refreshed, id)
}

func (s *Screens) placeBid(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, mutation{
		fallback: "Failed to save bid",
		load:     true,
		check: func(id models.Identity, form url.Values) error {
			if err := requireRole(id, models.RoleSeller, "Only sellers can place bids."); err != nil {
				return err
			}
			_, err := ParseAmount(form.Get("amount"))
			return err
		},
		run: func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error) {
			if !project.BiddingOpen(s.now()) {
				return "", invalid("deadline", "Bidding is closed for this project.")
			}
			amount, _ := ParseAmount(r.PostForm.Get("amount"))
			message := strings.TrimSpace(r.PostForm.Get("message"))

			if existing := project.BidBy(id.ID); existing != nil {
				req := api.UpdateBidRequest{BidID: existing.ID, Amount: amount, Message: message}
				if _, err := s.api.UpdateBid(ctx, token, req); err != nil {
					return "", err
				}
				return "Bid updated successfully!", nil
			}
			req := api.PlaceBidRequest{ProjectID: project.ID, Amount: amount, Message: message}
			if _, err := s.api.PlaceBid(ctx, token, req); err != nil {
				return "", err
			}
			return "Bid placed successfully!", nil
		},
	})
}

func (s *Screens) withdrawBid(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, mutation{
		fallback: "Failed to withdraw bid",
		load:     true,
		check: func(id models.Identity, _ url.Values) error {
			return requireRole(id, models.RoleSeller, "Only sellers can withdraw bids.")
		},
		run: func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error) {
			existing := project.BidBy(id.ID)
			if existing == nil {
				return "", invalid("bid", "You have not placed a bid on this project.")
			}
			if err := s.api.DeleteBid(ctx, token, existing.ID); err != nil {
				return "", err
			}
			return "Bid withdrawn.", nil
		},
	})
}

func (s *Screens) selectBid(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, mutation{
		fallback: "Failed to select bid",
		check: func(id models.Identity, form url.Values) error {
			if err := requireRole(id, models.RoleBuyer, "Only buyers can select a bid."); err != nil {
				return err
			}
			_, err := ParseBidID(form.Get("bidId"))
			return err
		},
		run: func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error) {
			bidID, _ := ParseBidID(r.PostForm.Get("bidId"))
			if err := s.api.SelectBid(ctx, token, project.ID, bidID); err != nil {
				return "", err
			}
			return "Bid selected.", nil
		},
	})
}

func (s *Screens) deliver(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, mutation{
		fallback: "Failed to upload deliverable",
		check: func(id models.Identity, form url.Values) error {
			if err := requireRole(id, models.RoleSeller, "Only sellers can upload deliverables."); err != nil {
				return err
			}
			f, err := CheckDeliverable(form.Get("file"))
			if err != nil {
				return err
			}
			return f.Close()
		},
		run: func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error) {
			path := r.PostForm.Get("file")
			f, err := CheckDeliverable(path)
			if err != nil {
				return "", err
			}
			defer f.Close()
			if _, err := s.api.Deliver(ctx, token, project.ID, filepath.Base(path), f); err != nil {
				return "", err
			}
			return "Deliverable uploaded.", nil
		},
	})
}

func (s *Screens) complete(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, mutation{
		fallback: "Failed to complete project",
		check: func(id models.Identity, _ url.Values) error {
			return requireRole(id, models.RoleBuyer, "Only buyers can complete projects.")
		},
		run: func(ctx context.Context, token string, id models.Identity, project models.Project) (string, error) {
			if err := s.api.Complete(ctx, token, project.ID); err != nil {
				return "", err
			}
			return "Project marked as completed.", nil
		},
	})
}

// renderProject prints the detail screen of project as seen by viewer.
func (s *Screens) renderProject(p *output.Printer, project models.Project, viewer models.Identity) {
	p.Header(project.Title)
	p.Print("%s", project.Description)
	p.Print("")
	p.Print("Status:    %s", p.StatusBadge(project.Status))
	p.Print("Budget:    %s - %s", money(project.BudgetMin), money(project.BudgetMax))
	p.Print("Deadline:  %s", date(project.Deadline))
	p.Print("Posted by: %s (%s)", project.Buyer.Name, project.Buyer.Email)
	p.Print("Created:   %s", date(project.CreatedAt))

	p.Header("Bids")
	if len(project.Bids) == 0 {
		p.Print("No bids have been placed yet.")
	} else {
		tbl := output.NewTable(p.Writer(), []string{"id", "amount", "placed by", "message", "placed on", ""})
		for _, b := range project.Bids {
			mark := ""
			if project.SelectedBidID != nil && *project.SelectedBidID == b.ID {
				mark = "selected"
			}
			tbl.AddRow(
				strconv.FormatInt(b.ID, 10),
				money(b.Amount),
				b.Seller.Name+" ("+b.Seller.Email+")",
				b.Message,
				date(b.CreatedAt),
				mark,
			)
		}
		if err := tbl.Render(); err != nil {
			s.log.Warn("render bid table", zap.Error(err))
		}
	}

	if d := project.Deliverable; d != nil {
		p.Header("Deliverable")
		p.Print("%s  %s  (uploaded %s)", d.FileName, d.URL, date(d.CreatedAt))
	}

	s.renderActions(p, project, viewer)
}

// renderActions lists the commands that fit the viewer and the project
// status. The server still decides whether an action is allowed.
func (s *Screens) renderActions(p *output.Printer, project models.Project, viewer models.Identity) {
	id := strconv.FormatInt(project.ID, 10)
	var actions []string

	switch viewer.Role {
	case models.RoleSeller:
		own := project.BidBy(viewer.ID)
		switch {
		case project.BiddingOpen(s.now()) && own != nil:
			p.Header("Edit Your Bid")
			p.Print("Your bid: %s %s", money(own.Amount), own.Message)
			actions = append(actions, "bid "+id+" <amount> [message]", "withdraw "+id)
		case project.BiddingOpen(s.now()):
			p.Header("Place a Bid")
			actions = append(actions, "bid "+id+" <amount> [message]")
		case project.Status == models.StatusOpen || project.Status == "":
			p.Print("")
			p.Warning("Bidding is closed for this project.")
		}
		if sel := project.SelectedBid(); sel != nil && sel.Seller.ID == viewer.ID && project.Status == models.StatusAssigned {
			actions = append(actions, "deliver "+id+" <file>")
		}
	case models.RoleBuyer:
		if project.Buyer.ID != viewer.ID {
			break
		}
		if project.Status == models.StatusOpen && len(project.Bids) > 0 {
			actions = append(actions, "select "+id+" <bidId>")
		}
		if project.Status == models.StatusAssigned && project.Deliverable != nil {
			actions = append(actions, "complete "+id)
		}
	}

	if len(actions) == 0 {
		return
	}
	p.Print("")
	p.Print("Available actions:")
	for _, a := range actions {
		p.Print("  %s", p.Bold(a))
	}
}
