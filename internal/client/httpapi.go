package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autogenius/autogenius/internal/auth"
	"github.com/autogenius/autogenius/internal/catalog"
	"github.com/autogenius/autogenius/internal/chat"
)

// HTTPAPI talks to an AutoGenius server over HTTP+JSON. The auth token is
// sent as a bearer credential on every call.
type HTTPAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// RequestTimeout bounds every API call, including a full diagnosis.
const RequestTimeout = 2 * time.Minute

// NewHTTPAPI creates a client for the server at baseURL.
func NewHTTPAPI(baseURL, token string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SetToken replaces the auth token used by later calls.
func (a *HTTPAPI) SetToken(token string) { a.token = token }

func (a *HTTPAPI) CurrentUser(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := a.do(ctx, http.MethodGet, "/api/auth/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *HTTPAPI) CreateSession(ctx context.Context, v catalog.Vehicle) (*chat.Created, error) {
	var created chat.Created
	if err := a.do(ctx, http.MethodPost, "/api/session", v, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *HTTPAPI) SendMessage(ctx context.Context, sessionID, text string) (*chat.Reply, error) {
	body := map[string]string{"session_id": sessionID, "message": text}
	var reply chat.Reply
	if err := a.do(ctx, http.MethodPost, "/api/chat", body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (a *HTTPAPI) ListHistory(ctx context.Context) ([]chat.HistoryItem, error) {
	var resp struct {
		Sessions []chat.HistoryItem `json:"sessions"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (a *HTTPAPI) GetSession(ctx context.Context, id string) (*chat.SessionDetail, error) {
	var detail chat.SessionDetail
	if err := a.do(ctx, http.MethodGet, "/api/history/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (a *HTTPAPI) ClearHistory(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/clear-history", nil, nil)
}

func (a *HTTPAPI) SetTextSize(ctx context.Context, sessionID, size string) error {
	body := map[string]string{"session_id": sessionID, "size": size}
	return a.do(ctx, http.MethodPost, "/api/set-text-size", body, nil)
}

func (a *HTTPAPI) UploadImage(ctx context.Context, sessionID, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := a.newRequest(ctx, http.MethodPost, "/api/upload-image", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		Success bool   `json:"success"`
		FileURL string `json:"file_url"`
	}
	if err := a.send(req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", errors.New("failed to upload image")
	}
	return resp.FileURL, nil
}

func (a *HTTPAPI) Logout(ctx context.Context) error {
	req, err := a.newRequest(ctx, http.MethodGet, "/api/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (a *HTTPAPI) LoginURL(cliRedirect string) string {
	if cliRedirect == "" {
		return a.baseURL + "/api/auth/login"
	}
	return a.baseURL + "/api/auth/login?cli_redirect=" + url.QueryEscape(cliRedirect)
}

func (a *HTTPAPI) LogoutURL() string { return a.baseURL + "/api/auth/logout" }

func (a *HTTPAPI) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req, nil
}

// do sends a JSON request and decodes the JSON response into out when out
// is non-nil.
func (a *HTTPAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *HTTPAPI) send(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// statusError maps a response status to the client error buckets.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrAuthRequired
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	}
	var body struct {
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) != nil {
		body.Detail = strings.TrimSpace(string(data))
	}
	return &APIError{Status: resp.StatusCode, Detail: body.Detail}
}
