package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/atinyakov/GigBid/internal/models"
)

// CreateProjectRequest is the body of POST /project/create.
type CreateProjectRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	BudgetMin   float64 `json:"budgetMin"`
	BudgetMax   float64 `json:"budgetMax"`
	// Deadline is a calendar date, YYYY-MM-DD.
	Deadline string `json:"deadline"`
}

// PlaceBidRequest is the body of POST /project/bid.
type PlaceBidRequest struct {
	ProjectID int64   `json:"projectId"`
	Amount    float64 `json:"amount"`
	Message   string  `json:"message"`
}

// UpdateBidRequest is the body of PUT /project/bid.
type UpdateBidRequest struct {
	BidID   int64   `json:"bidId"`
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

type projectResponse struct {
	Project models.Project `json:"project"`
}

type bidResponse struct {
	Bid models.Bid `json:"bid"`
}

// ListProjects returns all projects visible to the caller.
func (c *Client) ListProjects(ctx context.Context, token string) ([]models.Project, error) {
	var out struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathProjects, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// GetProject returns one project with its bids.
func (c *Client) GetProject(ctx context.Context, token string, id int64) (models.Project, error) {
	var out projectResponse
	path := pathProjects + "/" + strconv.FormatInt(id, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return models.Project{}, err
	}
	return out.Project, nil
}

// CreateProject posts a new project owned by the calling buyer.
func (c *Client) CreateProject(ctx context.Context, token string, req CreateProjectRequest) (models.Project, error) {
	var out projectResponse
	if err := c.doJSON(ctx, http.MethodPost, pathCreate, token, req, &out); err != nil {
		return models.Project{}, err
	}
	return out.Project, nil
}

// PlaceBid creates the caller's bid on a project.
func (c *Client) PlaceBid(ctx context.Context, token string, req PlaceBidRequest) (models.Bid, error) {
	var out bidResponse
	if err := c.doJSON(ctx, http.MethodPost, pathBid, token, req, &out); err != nil {
		return models.Bid{}, err
	}
	return out.Bid, nil
}

// UpdateBid changes the amount and message of the caller's bid.
func (c *Client) UpdateBid(ctx context.Context, token string, req UpdateBidRequest) (models.Bid, error) {
	var out bidResponse
	if err := c.doJSON(ctx, http.MethodPut, pathBid, token, req, &out); err != nil {
		return models.Bid{}, err
	}
	return out.Bid, nil
}

// DeleteBid withdraws the caller's bid.
func (c *Client) DeleteBid(ctx context.Context, token string, bidID int64) error {
	body := map[string]int64{"bidId": bidID}
	return c.doJSON(ctx, http.MethodDelete, pathBid, token, body, nil)
}

// SelectBid marks bidID as the winner of projectID.
func (c *Client) SelectBid(ctx context.Context, token string, projectID, bidID int64) error {
	body := map[string]int64{"projectId": projectID, "bidId": bidID}
	return c.doJSON(ctx, http.MethodPost, pathSelectBid, token, body, nil)
}

// Complete marks projectID as completed.
func (c *Client) Complete(ctx context.Context, token string, projectID int64) error {
	body := map[string]int64{"projectId": projectID}
	return c.doJSON(ctx, http.MethodPost, pathComplete, token, body, nil)
}

// Deliver uploads the deliverable for projectID as a multipart form.
func (c *Client) Deliver(ctx context.Context, token string, projectID int64, fileName string, content io.Reader) (models.Deliverable, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("projectId", strconv.FormatInt(projectID, 10)); err != nil {
		return models.Deliverable{}, fmt.Errorf("encode form: %w", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return models.Deliverable{}, fmt.Errorf("encode form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return models.Deliverable{}, fmt.Errorf("read deliverable: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Deliverable{}, fmt.Errorf("encode form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathDeliver, token, &buf)
	if err != nil {
		return models.Deliverable{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Deliverable models.Deliverable `json:"deliverable"`
	}
	if err := c.do(req, &out); err != nil {
		return models.Deliverable{}, err
	}
	return out.Deliverable, nil
}
