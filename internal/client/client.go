// Package client is a typed client for the lombard backend API.
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

	"github.com/erazemk/lombard/internal/model"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 16 << 20

// APIError is a failed backend call: a non-2xx status or an envelope with
// success 0.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show users for this failure.
func (e *APIError) UserMessage() string {
	if e.Message == "" {
		return model.GenericErrorMessage
	}
	return e.Message
}

// Client calls the backend. Authentication is the job of the HTTP client's
// transport, normally a session.Transport.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API rooted at baseURL, such as
// "http://localhost:8080/api/v1".
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send performs req and decodes the envelope. The decoded envelope is
// returned alongside an *APIError when the call failed.
func send[T any](c *Client, req *http.Request) (*model.Response[T], error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env model.Response[T]
	decodeErr := json.Unmarshal(data, &env)
	failed := resp.StatusCode < 200 || resp.StatusCode > 299
	switch {
	case failed && decodeErr != nil:
		return nil, &APIError{Status: resp.StatusCode, Code: resp.StatusCode}
	case failed || !env.OK():
		return &env, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	case decodeErr != nil:
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}
	return &env, nil
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (*model.Response[T], error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return send[T](c, req)
}

// LoginResult is returned by Login and SignUp.
type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// ProfileData is the account with its profile.
type ProfileData struct {
	User    model.User    `json:"user"`
	Profile model.Profile `json:"profile"`
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	Name   string     `json:"name"`
	NRC    string     `json:"nrc"`
	Phone  string     `json:"phone"`
	DOB    model.Date `json:"dob"`
	Gender string     `json:"gender"`
}

// Stats is the dashboard summary.
type Stats struct {
	Total       int                    `json:"total"`
	Active      int                    `json:"active"`
	Expired     int                    `json:"expired"`
	Redeemed    int                    `json:"redeemed"`
	Inactive    int                    `json:"inactive"`
	HeldValue   float64                `json:"heldValue"`
	ByCategory  map[model.Category]int `json:"byCategory"`
	DueThisWeek int                    `json:"dueThisWeek"`
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	resp, err := call[LoginResult](ctx, c, http.MethodPost, "/auth/user/login",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// SendOTP requests a sign-up code for email.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodPost, "/auth/user/send-otp",
		map[string]string{"email": email})
	return err
}

// VerifyOTP checks a code. For the reset purpose it returns the reset token.
func (c *Client) VerifyOTP(ctx context.Context, email, otp, purpose string) (string, error) {
	resp, err := call[map[string]any](ctx, c, http.MethodPost, "/auth/user/verify-otp",
		map[string]string{"email": email, "otp": otp, "purpose": purpose})
	if err != nil {
		return "", err
	}
	token, _ := resp.Data["resetToken"].(string)
	return token, nil
}

// SignUp creates an account for a verified address.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (*LoginResult, error) {
	resp, err := call[LoginResult](ctx, c, http.MethodPost, "/auth/user/sign-up",
		map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ForgotPassword requests a reset code for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodPost, "/auth/user/forgot-password",
		map[string]string{"email": email})
	return err
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodPost, "/auth/user/reset-password",
		map[string]string{"resetToken": resetToken, "password": password})
	return err
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodPost, "/auth/user/logout", nil)
	return err
}

// ProfileData returns the signed-in account and its profile.
func (c *Client) ProfileData(ctx context.Context) (*ProfileData, error) {
	resp, err := call[ProfileData](ctx, c, http.MethodGet, "/auth/user/profile/getProfileData", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	resp, err := call[model.Profile](ctx, c, http.MethodGet, "/profile", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateProfile saves the signed-in user's profile.
func (c *Client) UpdateProfile(ctx context.Context, u ProfileUpdate) (*model.Profile, error) {
	resp, err := call[model.Profile](ctx, c, http.MethodPut, "/profile", u)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UploadPicture sends a profile picture as multipart form data.
func (c *Client) UploadPicture(ctx context.Context, filename string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("picture", filename)
	if err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profile/upload-picture", &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = send[json.RawMessage](c, req)
	return err
}

// Picture returns the signed-in user's picture and its MIME type.
func (c *Client) Picture(ctx context.Context) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/profile/picture", nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("calling GET /profile/picture: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("reading picture: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var env model.Response[json.RawMessage]
		json.Unmarshal(data, &env)
		return nil, "", &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ListPawnItems fetches the items of category in the backend's sortBy order.
func (c *Client) ListPawnItems(ctx context.Context, category model.Category, sortBy string) ([]model.PawnItem, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", string(category))
	}
	if sortBy != "" {
		q.Set("sortBy", sortBy)
	}
	path := "/auth/pawn-item"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := call[[]model.PawnItem](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPawnItem fetches one item.
func (c *Client) GetPawnItem(ctx context.Context, id string) (*model.PawnItem, error) {
	resp, err := call[model.PawnItem](ctx, c, http.MethodGet, "/auth/pawn-item/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreatePawnItem stores a new item.
func (c *Client) CreatePawnItem(ctx context.Context, req model.PawnRequest) (*model.Response[model.PawnItem], error) {
	return call[model.PawnItem](ctx, c, http.MethodPost, "/auth/pawn-item", req)
}

// UpdatePawnItem replaces an item.
func (c *Client) UpdatePawnItem(ctx context.Context, id string, req model.PawnRequest) (*model.Response[model.PawnItem], error) {
	return call[model.PawnItem](ctx, c, http.MethodPut, "/auth/pawn-item/"+url.PathEscape(id), req)
}

// DeletePawnItem soft-deletes an item.
func (c *Client) DeletePawnItem(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodDelete, "/auth/pawn-item/"+url.PathEscape(id), nil)
	return err
}

// RedeemPawnItem checks an item out to its owner.
func (c *Client) RedeemPawnItem(ctx context.Context, id string) (*model.PawnItem, error) {
	resp, err := call[model.PawnItem](ctx, c, http.MethodPost, "/auth/pawn-item/"+url.PathEscape(id)+"/redeem", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Reports fetches the report projection of every item.
func (c *Client) Reports(ctx context.Context) ([]model.ReportItem, error) {
	resp, err := call[[]model.ReportItem](ctx, c, http.MethodGet, "/reports", nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Stats fetches the dashboard summary.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	resp, err := call[Stats](ctx, c, http.MethodGet, "/reports/stats", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
