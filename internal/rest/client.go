// Package rest is the client for the backend collaborator: message
// send, attachment upload, history fetch, and the per-message actions
// (react, edit, delete, pin). It performs no reconciliation of its
// own; callers feed its results into the store layer.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pedrohba/convo/internal/model"
)

// DefaultTimeout bounds every request issued by the client.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

// Client talks to the backend REST service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a backend client for the given base URL and token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendRequest is the payload for sending a message.
type SendRequest struct {
	ChannelID   string             `json:"channelId"`
	Body        string             `json:"body"`
	Kind        model.Kind         `json:"kind"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
	ReplyTo     string             `json:"replyTo,omitempty"`
	ProjectID   string             `json:"projectId,omitempty"`
}

// SendMessage submits a message and returns the confirmed entity with
// its server identifier and authoritative timestamps.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*model.Message, error) {
	var msg model.Message
	path := fmt.Sprintf("/api/channels/%s/messages", url.PathEscape(req.ChannelID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UploadRequest carries one attachment's bytes and metadata.
type UploadRequest struct {
	ChannelID  string
	Name       string
	Kind       string
	DurationMs int64 // voice notes only
	Data       io.Reader
}

// UploadAttachment uploads raw file bytes and returns the attachment
// descriptor the message body will reference.
func (c *Client) UploadAttachment(ctx context.Context, req UploadRequest) (*model.Attachment, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, req.Data); err != nil {
		return nil, fmt.Errorf("copy file data: %w", err)
	}
	_ = w.WriteField("kind", req.Kind)
	if req.DurationMs > 0 {
		_ = w.WriteField("durationMs", strconv.FormatInt(req.DurationMs, 10))
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	path := fmt.Sprintf("/api/channels/%s/attachments", url.PathEscape(req.ChannelID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	c.auth(httpReq)

	var att model.Attachment
	if err := c.do(httpReq, &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// Page is one page of channel history.
type Page struct {
	Messages []*model.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// FetchMessages returns up to limit messages older than the before
// cursor (a message ID; empty means newest page), oldest first.
func (c *Client) FetchMessages(ctx context.Context, channelID, before string, limit int) (*Page, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/api/channels/%s/messages", url.PathEscape(channelID))
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var page Page
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ToggleReaction flips the calling user's reaction on a message.
func (c *Client) ToggleReaction(ctx context.Context, channelID, messageID, symbol string) error {
	path := fmt.Sprintf("/api/channels/%s/messages/%s/reactions",
		url.PathEscape(channelID), url.PathEscape(messageID))
	return c.doJSON(ctx, http.MethodPost, path, map[string]string{"symbol": symbol}, nil)
}

// EditMessage replaces a message's body.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, body string) (*model.Message, error) {
	path := fmt.Sprintf("/api/channels/%s/messages/%s",
		url.PathEscape(channelID), url.PathEscape(messageID))
	var msg model.Message
	if err := c.doJSON(ctx, http.MethodPatch, path, map[string]string{"body": body}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/api/channels/%s/messages/%s",
		url.PathEscape(channelID), url.PathEscape(messageID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// SetPinned pins or unpins a message.
func (c *Client) SetPinned(ctx context.Context, channelID, messageID string, pinned bool) error {
	path := fmt.Sprintf("/api/channels/%s/messages/%s/pin",
		url.PathEscape(channelID), url.PathEscape(messageID))
	return c.doJSON(ctx, http.MethodPut, path, map[string]bool{"pinned": pinned}, nil)
}

// FetchMessage fetches one message by ID, used to resolve a reply-to
// root that is not in the local store.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*model.Message, error) {
	path := fmt.Sprintf("/api/channels/%s/messages/%s",
		url.PathEscape(channelID), url.PathEscape(messageID))
	var msg model.Message
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.auth(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Message != "" {
			apiErr.Message = body.Message
		} else {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
