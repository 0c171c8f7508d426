// Package models defines the core data structures shared by the API client,
// the session store and the screens.
package models

import "time"

// Role is the marketplace role of an account.
type Role string

const (
	// RoleBuyer posts projects, selects a winning bid and completes projects.
	RoleBuyer Role = "BUYER"
	// RoleSeller places bids and uploads deliverables.
	RoleSeller Role = "SELLER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Identity is the resolved profile of the account behind a credential.
type Identity struct {
	// ID is the unique identifier of the account.
	ID int64 `json:"id"`
	// Email is the login e-mail.
	Email string `json:"email"`
	// Name is the display name.
	Name string `json:"name"`
	// Role is either BUYER or SELLER.
	Role Role `json:"role"`
}

// Party is the short account view embedded in projects and bids.
type Party struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectStatus is the server-side lifecycle state of a project.
type ProjectStatus string

const (
	// StatusOpen accepts bids.
	StatusOpen ProjectStatus = "OPEN"
	// StatusAssigned has a selected bid and awaits delivery.
	StatusAssigned ProjectStatus = "ASSIGNED"
	// StatusCompleted was accepted by the buyer.
	StatusCompleted ProjectStatus = "COMPLETED"
)

// Project is a job posted by a buyer.
type Project struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	BudgetMin     float64       `json:"budgetMin"`
	BudgetMax     float64       `json:"budgetMax"`
	Deadline      time.Time     `json:"deadline"`
	Status        ProjectStatus `json:"status"`
	Buyer         Party         `json:"buyer"`
	Bids          []Bid         `json:"bids,omitempty"`
	SelectedBidID *int64        `json:"selectedBidId,omitempty"`
	Deliverable   *Deliverable  `json:"deliverable,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// BidBy returns the bid placed by the seller with the given id, if any.
func (p *Project) BidBy(sellerID int64) *Bid {
	for i := range p.Bids {
		if p.Bids[i].Seller.ID == sellerID {
			return &p.Bids[i]
		}
	}
	return nil
}

// SelectedBid returns the winning bid, if one was selected.
func (p *Project) SelectedBid() *Bid {
	if p.SelectedBidID == nil {
		return nil
	}
	for i := range p.Bids {
		if p.Bids[i].ID == *p.SelectedBidID {
			return &p.Bids[i]
		}
	}
	return nil
}

// BiddingOpen reports whether sellers may still bid at the given moment.
func (p *Project) BiddingOpen(now time.Time) bool {
	if p.Status != "" && p.Status != StatusOpen {
		return false
	}
	return p.Deadline.After(now)
}

// Bid is a seller's offer on a project.
type Bid struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Message   string    `json:"message"`
	Seller    Party     `json:"seller"`
	CreatedAt time.Time `json:"createdAt"`
}

// Deliverable is the file uploaded by the selected seller.
type Deliverable struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}
