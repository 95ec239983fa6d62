// Package source talks to the deal feed: the newest-first listing and
// single-deal lookups.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"

	"dealwatch/internal/model"
)

var (
	// ErrGone is returned by FetchOne when the deal was deleted (HTTP 410).
	ErrGone = errors.New("deal gone")
	// ErrNotFound is returned by FetchOne when the deal is not visible,
	// usually because it is in moderation (HTTP 404).
	ErrNotFound = errors.New("deal not found")
)

// StatusError is returned for any other unexpected HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Format selects how the listing endpoint is decoded.
type Format string

// Supported listing formats.
const (
	FormatJSON Format = "json"
	FormatRSS  Format = "rss"
)

const maxBody = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads deals from the feed's HTTP API.
type Client struct {
	client    HTTPClient
	baseURL   string
	format    Format
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithFormat selects the listing format.
func WithFormat(f Format) Option {
	return func(c *Client) { c.format = f }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the feed rooted at baseURL.
func New(client HTTPClient, baseURL string, opts ...Option) *Client {
	c := &Client{
		client:    client,
		baseURL:   baseURL,
		format:    FormatJSON,
		userAgent: "dealwatch/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns an http.Client with the given timeout, routed
// through proxyURL when it is not empty.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// ListNew returns one page of the newest-first listing. Pages start at 1.
func (c *Client) ListNew(ctx context.Context, page int) ([]model.Deal, error) {
	switch c.format {
	case FormatRSS:
		u := fmt.Sprintf("%s/rss/new?page=%d", c.baseURL, page)
		body, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		return parseRSS(body)
	default:
		u := fmt.Sprintf("%s/api/deals/new?page=%d", c.baseURL, page)
		body, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		deals := make([]model.Deal, 0, len(resp.Deals))
		for _, d := range resp.Deals {
			deals = append(deals, d.toModel())
		}
		return deals, nil
	}
}

// FetchOne returns the current state of the deal at dealURL.
func (c *Client) FetchOne(ctx context.Context, dealURL string) (model.Deal, error) {
	u := fmt.Sprintf("%s/api/deal?url=%s", c.baseURL, url.QueryEscape(dealURL))
	body, err := c.get(ctx, u)
	if err != nil {
		return model.Deal{}, err
	}
	var d apiDeal
	if err := json.Unmarshal(body, &d); err != nil {
		return model.Deal{}, fmt.Errorf("decode deal: %w", err)
	}
	return d.toModel(), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusGone:
		return nil, ErrGone
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

type listResponse struct {
	Deals []apiDeal `json:"deals"`
}

type apiDeal struct {
	ID            json.Number `json:"id"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	User          *apiName    `json:"user"`
	Price         *float64    `json:"price"`
	NextBestPrice *float64    `json:"nextBestPrice"`
	Group         *apiName    `json:"group"`
	Temperature   float64     `json:"temperature"`
	PublishedAt   int64       `json:"publishedAt"`
	RePublishedAt *int64      `json:"rePublishedAt"`
	Image         *apiImage   `json:"image"`
	Description   string      `json:"description"`
}

type apiName struct {
	Name string `json:"name"`
}

type apiImage struct {
	URL string `json:"url"`
}

func (d apiDeal) toModel() model.Deal {
	m := model.Deal{
		ID:            d.ID.String(),
		URL:           d.URL,
		Title:         d.Title,
		Price:         d.Price,
		NextBestPrice: d.NextBestPrice,
		Temperature:   d.Temperature,
		PublishedAt:   time.Unix(d.PublishedAt, 0).UTC(),
		Description:   d.Description,
	}
	if d.User != nil {
		m.Author = d.User.Name
	}
	if d.Group != nil {
		m.Category = d.Group.Name
	}
	if d.Image != nil {
		m.ImageURL = d.Image.URL
	}
	if d.RePublishedAt != nil && *d.RePublishedAt > 0 {
		t := time.Unix(*d.RePublishedAt, 0).UTC()
		m.RepublishedAt = &t
	}
	return m
}

// dealNS is the namespace prefix of the deal extension elements in the RSS
// listing (<deal:temperature>, <deal:price>, ...).
const dealNS = "deal"

func parseRSS(body []byte) ([]model.Deal, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	deals := make([]model.Deal, 0, len(feed.Items))
	for _, item := range feed.Items {
		deals = append(deals, itemToDeal(item))
	}
	return deals, nil
}

func itemToDeal(item *gofeed.Item) model.Deal {
	d := model.Deal{
		ID:          item.GUID,
		URL:         item.Link,
		Title:       item.Title,
		Description: item.Description,
	}
	if d.ID == "" {
		d.ID = item.Link
	}
	if item.Author != nil {
		d.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		d.Author = item.Authors[0].Name
	}
	if len(item.Categories) > 0 {
		d.Category = item.Categories[0]
	}
	if item.PublishedParsed != nil {
		d.PublishedAt = item.PublishedParsed.UTC()
	}
	if item.Image != nil {
		d.ImageURL = item.Image.URL
	} else if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		d.ImageURL = item.Enclosures[0].URL
	}

	if v, ok := extFloat(item, "temperature"); ok {
		d.Temperature = v
	}
	if v, ok := extFloat(item, "price"); ok {
		d.Price = &v
	}
	if v, ok := extFloat(item, "nextBestPrice"); ok {
		d.NextBestPrice = &v
	}
	if raw := extValue(item, "republishedAt"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			t = t.UTC()
			d.RepublishedAt = &t
		}
	}
	return d
}

func extValue(item *gofeed.Item, name string) string {
	if item.Extensions == nil {
		return ""
	}
	values := item.Extensions[dealNS][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

func extFloat(item *gofeed.Item, name string) (float64, bool) {
	raw := extValue(item, name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
