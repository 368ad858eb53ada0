package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kjannette/trahn-portfolio/internal/httputil"
)

const (
	DefaultNotionURL     = "https://api.notion.com/v1"
	DefaultNotionVersion = "2022-06-28"
	// Notion allows an average of three requests per second per integration.
	notionRateLimit = 3
)

type NotionClient struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	limiter    *rate.Limiter
}

type NotionOption func(*NotionClient)

func WithNotionURL(u string) NotionOption {
	return func(c *NotionClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithNotionVersion(v string) NotionOption {
	return func(c *NotionClient) {
		if v != "" {
			c.version = v
		}
	}
}

func WithNotionLogger(l zerolog.Logger) NotionOption {
	return func(c *NotionClient) { c.retry.Logger = &l }
}

func WithNotionRetry(cfg httputil.RetryConfig) NotionOption {
	return func(c *NotionClient) {
		logger := c.retry.Logger
		c.retry = cfg
		if cfg.Logger == nil {
			c.retry.Logger = logger
		}
	}
}

func NewNotionClient(token string, opts ...NotionOption) *NotionClient {
	c := &NotionClient{
		baseURL:    DefaultNotionURL,
		token:      token,
		version:    DefaultNotionVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(notionRateLimit), notionRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire types ---

type NotionQuery struct {
	Filter      *NotionFilter `json:"filter,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
}

type NotionFilter struct {
	Property string            `json:"property"`
	RichText *NotionTextFilter `json:"rich_text,omitempty"`
}

type NotionTextFilter struct {
	Equals string `json:"equals"`
}

type NotionQueryResult struct {
	Results    []NotionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor *string      `json:"next_cursor"`
}

type NotionPage struct {
	ID         string                    `json:"id"`
	Properties map[string]NotionProperty `json:"properties"`
}

type NotionDatabase struct {
	ID         string           `json:"id"`
	Title      []NotionRichText `json:"title"`
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
}

type NotionProperty struct {
	Type     string           `json:"type,omitempty"`
	Number   *json.Number     `json:"number,omitempty"`
	Select   *NotionSelect    `json:"select,omitempty"`
	RichText []NotionRichText `json:"rich_text,omitempty"`
}

type NotionSelect struct {
	Name string `json:"name"`
}

type NotionRichText struct {
	Type      string      `json:"type,omitempty"`
	Text      *NotionText `json:"text,omitempty"`
	PlainText string      `json:"plain_text,omitempty"`
}

type NotionText struct {
	Content string `json:"content"`
}

// PlainText returns the first text run of a rich_text property.
func (p NotionProperty) PlainText() string {
	if len(p.RichText) == 0 {
		return ""
	}
	rt := p.RichText[0]
	if rt.PlainText != "" {
		return rt.PlainText
	}
	if rt.Text != nil {
		return rt.Text.Content
	}
	return ""
}

// SelectName returns the option name of a select property.
func (p NotionProperty) SelectName() string {
	if p.Select == nil {
		return ""
	}
	return p.Select.Name
}

// Decimal returns the number property, zero when unset.
func (p NotionProperty) Decimal() (decimal.Decimal, error) {
	if p.Number == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(p.Number.String())
}

func NumberProperty(d decimal.Decimal) NotionProperty {
	n := json.Number(d.String())
	return NotionProperty{Number: &n}
}

func SelectProperty(name string) NotionProperty {
	return NotionProperty{Select: &NotionSelect{Name: name}}
}

func RichTextProperty(s string) NotionProperty {
	return NotionProperty{RichText: []NotionRichText{{Text: &NotionText{Content: s}}}}
}

// --- endpoints ---

func (c *NotionClient) QueryDatabase(ctx context.Context, databaseID string, q NotionQuery) (*NotionQueryResult, error) {
	var out NotionQueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NotionClient) RetrieveDatabase(ctx context.Context, databaseID string) (*NotionDatabase, error) {
	var out NotionDatabase
	if err := c.do(ctx, http.MethodGet, "/databases/"+databaseID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NotionClient) CreatePage(ctx context.Context, databaseID string, props map[string]NotionProperty) (*NotionPage, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": props,
	}
	var out NotionPage
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NotionClient) UpdatePage(ctx context.Context, pageID string, props map[string]NotionProperty) error {
	body := map[string]any{"properties": props}
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

func (c *NotionClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		payload = b
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.version)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("notion %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError("notion", path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
