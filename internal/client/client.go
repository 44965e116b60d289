// Package client talks to the helpdesk REST API. It backs the board and
// comment thread views of helpdeskctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/storage"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL includes the route prefix, e.g. "http://localhost:3001/api".
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a bearer-authenticated API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		token:      cfg.Token,
	}, nil
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates an account and keeps its token.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	var res dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users", req, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (*dto.AuthResponse, error) {
	var res dto.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users/login", dto.LoginRequest{Username: username, Password: password}, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	c.logger.Debug("logged in", zap.String("username", res.User.Username))
	return &res, nil
}

// CurrentUser returns the account behind the token.
func (c *Client) CurrentUser(ctx context.Context) (*dto.PublicUser, error) {
	var res dto.PublicUser
	if err := c.doJSON(ctx, http.MethodGet, "/users", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetUser looks up public account fields.
func (c *Client) GetUser(ctx context.Context, id string) (*dto.PublicUser, error) {
	var res dto.PublicUser
	if err := c.doJSON(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListStaff returns the staff accounts.
func (c *Client) ListStaff(ctx context.Context) ([]dto.PublicUser, error) {
	var res []dto.PublicUser
	if err := c.doJSON(ctx, http.MethodGet, "/users/staff/list", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListTickets returns the tickets visible to the caller.
func (c *Client) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	var res []dto.Ticket
	if err := c.doJSON(ctx, http.MethodGet, "/tickets", nil, &res); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(res))
	for _, t := range res {
		tickets = append(tickets, t.Domain())
	}
	return tickets, nil
}

// GetTicket fetches one ticket. Only its owner and staff may read it.
func (c *Client) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	var res dto.Ticket
	if err := c.doJSON(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	t := res.Domain()
	return &t, nil
}

// TicketUpdate is a partial ticket update. Fields maps form field names
// (title, status, assignedTo, ...) to values; only sent keys are applied.
type TicketUpdate struct {
	Fields        map[string]string
	RemovedImages []int
	Images        []storage.Upload
}

// UpdateTicket sends a multipart PUT /tickets/:id.
func (c *Client) UpdateTicket(ctx context.Context, id string, update TicketUpdate) (*domain.Ticket, error) {
	fields := make(map[string]string, len(update.Fields)+1)
	for k, v := range update.Fields {
		fields[k] = v
	}
	if len(update.RemovedImages) > 0 {
		raw, err := json.Marshal(update.RemovedImages)
		if err != nil {
			return nil, err
		}
		fields["removedImages"] = string(raw)
	}
	var res dto.Ticket
	if err := c.doMultipart(ctx, http.MethodPut, "/tickets/"+url.PathEscape(id), fields, update.Images, &res); err != nil {
		return nil, err
	}
	t := res.Domain()
	return &t, nil
}

// UpdateStatus moves a ticket to status.
func (c *Client) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	return c.UpdateTicket(ctx, id, TicketUpdate{Fields: map[string]string{"status": string(status)}})
}

// CreateTicket sends a multipart POST /tickets. fields must include the
// required ticket fields; at most three images are kept by the server.
func (c *Client) CreateTicket(ctx context.Context, fields map[string]string, images []storage.Upload) (*domain.Ticket, error) {
	var res dto.Ticket
	if err := c.doMultipart(ctx, http.MethodPost, "/tickets", fields, images, &res); err != nil {
		return nil, err
	}
	t := res.Domain()
	return &t, nil
}

// DeleteTicket removes a ticket. Staff only.
func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tickets/"+url.PathEscape(id), nil, nil)
}

// ListComments returns a ticket's thread oldest first.
func (c *Client) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	var res []dto.Comment
	if err := c.doJSON(ctx, http.MethodGet, "/tickets/"+url.PathEscape(ticketID)+"/comments", nil, &res); err != nil {
		return nil, err
	}
	comments := make([]domain.Comment, 0, len(res))
	for _, cm := range res {
		comments = append(comments, cm.Domain())
	}
	return comments, nil
}

// AddComment posts a comment as the token's user.
func (c *Client) AddComment(ctx context.Context, ticketID, text string) (*domain.Comment, error) {
	var res dto.Comment
	path := "/tickets/" + url.PathEscape(ticketID) + "/comments"
	if err := c.doJSON(ctx, http.MethodPost, path, dto.CreateCommentRequest{Text: text}, &res); err != nil {
		return nil, err
	}
	cm := res.Domain()
	return &cm, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, images []storage.Upload, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	for _, img := range images {
		if err := copyPart(w, img); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

func copyPart(w *multipart.Writer, img storage.Upload) error {
	src, err := img.Open()
	if err != nil {
		return fmt.Errorf("client: open %s: %w", img.Filename(), err)
	}
	defer src.Close()
	part, err := w.CreateFormFile("image", img.Filename())
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds the server's DomainError from the error envelope so
// callers can branch with apperrors.HasCode.
func decodeError(status int, body []byte) error {
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return apperrors.ToDomainError(fiber.NewError(status, msg))
	}
	return apperrors.NewDomainError(env.Error.Code, env.Error.Message, status, env.Error.Details)
}
