package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/GigBid/internal/models"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, req.Email) {
			found = a
			break
		}
	}
	s.mu.Unlock()
	if found == nil || found.password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.TokenFor(found.ID, DefaultTokenTTL)})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Name     string      `json:"name"`
		Role     models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	s.mu.Lock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, req.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
	}
	id := s.addUserLocked(req.Email, req.Password, req.Name, req.Role)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"token": s.TokenFor(id.ID, DefaultTokenTTL)})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hook := s.meHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	a, ok := s.caller(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": a.Identity})
}

func (s *Server) caller(r *http.Request) (*account, bool) {
	id, ok := userIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		c := cloneProject(p)
		c.Bids = nil
		out = append(out, c)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project id")
		return
	}
	p, ok := s.Project(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	if a.Role != models.RoleBuyer {
		writeError(w, http.StatusForbidden, "Only buyers can create projects")
		return
	}
	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		BudgetMin   float64 `json:"budgetMin"`
		BudgetMax   float64 `json:"budgetMax"`
		Deadline    string  `json:"deadline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	deadline, err := time.Parse(time.DateOnly, req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deadline")
		return
	}
	p := s.AddProject(a.ID, models.Project{
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		Deadline:    deadline.UTC(),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"project": p})
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var req struct {
		ProjectID int64   `json:"projectId"`
		Amount    float64 `json:"amount"`
		Message   string  `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if a.Role != models.RoleSeller {
		writeError(w, http.StatusForbidden, "Only sellers can place bids")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[req.ProjectID]
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	if !p.BiddingOpen(time.Now()) {
		writeError(w, http.StatusBadRequest, "Bidding is closed for this project")
		return
	}
	if p.BidBy(a.ID) != nil {
		writeError(w, http.StatusConflict, "You have already placed a bid on this project")
		return
	}
	s.nextID++
	bid := models.Bid{
		ID:        s.nextID,
		Amount:    req.Amount,
		Message:   req.Message,
		Seller:    s.partyLocked(a.ID),
		CreatedAt: time.Now().UTC(),
	}
	p.Bids = append(p.Bids, bid)
	writeJSON(w, http.StatusCreated, map[string]any{"bid": bid})
}

// findBidLocked returns the project and index of bidID.
func (s *Server) findBidLocked(bidID int64) (*models.Project, int) {
	for _, p := range s.projects {
		for i := range p.Bids {
			if p.Bids[i].ID == bidID {
				return p, i
			}
		}
	}
	return nil, -1
}

func (s *Server) updateBid(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var req struct {
		BidID   int64   `json:"bidId"`
		Amount  float64 `json:"amount"`
		Message string  `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, i := s.findBidLocked(req.BidID)
	if p == nil {
		writeError(w, http.StatusNotFound, "Bid not found")
		return
	}
	if p.Bids[i].Seller.ID != a.ID {
		writeError(w, http.StatusForbidden, "You can only update your own bid")
		return
	}
	if !p.BiddingOpen(time.Now()) {
		writeError(w, http.StatusBadRequest, "Bidding is closed for this project")
		return
	}
	p.Bids[i].Amount = req.Amount
	p.Bids[i].Message = req.Message
	writeJSON(w, http.StatusOK, map[string]any{"bid": p.Bids[i]})
}

func (s *Server) deleteBid(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var req struct {
		BidID int64 `json:"bidId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, i := s.findBidLocked(req.BidID)
	if p == nil {
		writeError(w, http.StatusNotFound, "Bid not found")
		return
	}
	if p.Bids[i].Seller.ID != a.ID {
		writeError(w, http.StatusForbidden, "You can only withdraw your own bid")
		return
	}
	if p.Status != models.StatusOpen {
		writeError(w, http.StatusBadRequest, "Bids can only be withdrawn while the project is open")
		return
	}
	p.Bids = append(p.Bids[:i], p.Bids[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{})
}

// ownedProjectLocked loads projectID and checks the caller is its buyer.
func (s *Server) ownedProjectLocked(w http.ResponseWriter, a *account, projectID int64) (*models.Project, bool) {
	p, ok := s.projects[projectID]
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return nil, false
	}
	if p.Buyer.ID != a.ID {
		writeError(w, http.StatusForbidden, "Only the project owner can do this")
		return nil, false
	}
	return p, true
}

func (s *Server) selectBid(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var req struct {
		ProjectID int64 `json:"projectId"`
		BidID     int64 `json:"bidId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.ownedProjectLocked(w, a, req.ProjectID)
	if !ok {
		return
	}
	if p.Status != models.StatusOpen {
		writeError(w, http.StatusBadRequest, "A bid has already been selected")
		return
	}
	found := false
	for _, b := range p.Bids {
		if b.ID == req.BidID {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "Bid not found")
		return
	}
	bidID := req.BidID
	p.SelectedBidID = &bidID
	p.Status = models.StatusAssigned
	writeJSON(w, http.StatusOK, map[string]any{"project": cloneProject(p)})
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	projectID, err := strconv.ParseInt(r.FormValue("projectId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project id")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	n, _ := io.Copy(io.Discard, file)
	if n == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	selected := p.SelectedBid()
	if p.Status != models.StatusAssigned || selected == nil || selected.Seller.ID != a.ID {
		writeError(w, http.StatusForbidden, "Only the selected seller can deliver")
		return
	}
	s.nextID++
	d := models.Deliverable{
		ID:        s.nextID,
		FileName:  header.Filename,
		URL:       "/uploads/" + strconv.FormatInt(s.nextID, 10) + "/" + header.Filename,
		CreatedAt: time.Now().UTC(),
	}
	p.Deliverable = &d
	writeJSON(w, http.StatusCreated, map[string]any{"deliverable": d})
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request) {
	a, _ := s.caller(r)
	var req struct {
		ProjectID int64 `json:"projectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.ownedProjectLocked(w, a, req.ProjectID)
	if !ok {
		return
	}
	if p.Status != models.StatusAssigned || p.Deliverable == nil {
		writeError(w, http.StatusBadRequest, "Project has no deliverable yet")
		return
	}
	p.Status = models.StatusCompleted
	writeJSON(w, http.StatusOK, map[string]any{"project": cloneProject(p)})
}
