package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a Gateway backed by the host's JSON admin API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var out []Section
	if err := c.do(ctx, http.MethodGet, "/sections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Section(ctx context.Context, handle string) (*Section, error) {
	var out Section
	if err := c.do(ctx, http.MethodGet, "/sections/"+url.PathEscape(handle), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var out []Field
	if err := c.do(ctx, http.MethodGet, "/fields", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Entry(ctx context.Context, id int) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodGet, "/entries/"+strconv.Itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateEntry(ctx context.Context, entry Entry) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodPost, "/entries", entry, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id int, title string, fields map[string]any) (*Entry, error) {
	body := map[string]any{"fields": fields}
	if title != "" {
		body["title"] = title
	}
	var out Entry
	if err := c.do(ctx, http.MethodPatch, "/entries/"+strconv.Itoa(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var out []Site
	if err := c.do(ctx, http.MethodGet, "/sites", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cms returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode cms response: %w", err)
	}
	return nil
}
