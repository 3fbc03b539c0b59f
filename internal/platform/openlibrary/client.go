package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookscan/internal/entity"
	"bookscan/internal/lookup"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://openlibrary.org"
	coversBaseURL   = "https://covers.openlibrary.org"
	defaultTimeout  = 15 * time.Second
	defaultBackoff  = time.Second
	searchDocFields = "key,title,subtitle,author_name,isbn,publisher,first_publish_year,cover_i"
)

// Client implements lookup.Service against the Open Library API.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	baseURL     string
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.baseBackoff = d }
}

func NewClient(userAgent string, rps float64, maxRetries int, opts ...Option) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		userAgent:   userAgent,
		baseURL:     DefaultBaseURL,
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  maxRetries,
		baseBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchResponse matches search.json
type SearchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorNames      []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	Publishers       []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_i"`
}

type Publisher struct {
	Name string `json:"name"`
}

// BookDetails matches api/books?jscmd=data
type BookDetails struct {
	Title       string      `json:"title"`
	Subtitle    string      `json:"subtitle"`
	Publishers  []Publisher `json:"publishers"`
	PublishDate string      `json:"publish_date"`
	Cover       struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Authors []struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	} `json:"authors"`
	Excerpts []struct {
		Text string `json:"text"`
	} `json:"excerpts"`
	Notes string `json:"notes"`
}

// LookupByIdentifier resolves one ISBN/EAN. An empty response means not found.
func (c *Client) LookupByIdentifier(ctx context.Context, identifier string) (entity.CatalogItem, error) {
	identifier = strings.TrimSpace(identifier)
	u := fmt.Sprintf("%s/api/books?bibkeys=%s&jscmd=data&format=json",
		c.baseURL, url.QueryEscape("ISBN:"+identifier))

	var res map[string]BookDetails
	if err := c.get(ctx, u, &res); err != nil {
		return entity.CatalogItem{}, err
	}
	details, ok := res["ISBN:"+identifier]
	if !ok {
		return entity.CatalogItem{}, lookup.ErrNotFound
	}
	return details.toItem(identifier), nil
}

// SearchByText runs a free-text search. page starts at 1.
func (c *Client) SearchByText(ctx context.Context, query string, limit, page int) ([]entity.CatalogItem, error) {
	u := fmt.Sprintf("%s/search.json?q=%s&fields=%s&limit=%d&page=%d",
		c.baseURL, url.QueryEscape(query), searchDocFields, limit, page)

	var res SearchResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	items := make([]entity.CatalogItem, 0, len(res.Docs))
	for _, doc := range res.Docs {
		items = append(items, doc.toItem())
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, url string, target interface{}) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			backoff := c.baseBackoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retry, err := c.do(ctx, url, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return &lookup.TransportError{
		Op:  "openlibrary get",
		Err: fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr),
	}
}

// do performs one attempt and reports whether a failure is worth retrying.
func (c *Client) do(ctx context.Context, url string, target interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &lookup.TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, &lookup.RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, &lookup.TransportError{
			Op:  "openlibrary get",
			Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, &lookup.MalformedError{Err: err}
		}
		return true, err
	}
	return false, nil
}

func (d BookDetails) toItem(identifier string) entity.CatalogItem {
	title := d.Title
	if d.Subtitle != "" {
		title = d.Title + ": " + d.Subtitle
	}
	authors := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}
	description := d.Notes
	if description == "" && len(d.Excerpts) > 0 {
		description = d.Excerpts[0].Text
	}
	return entity.CatalogItem{
		Identifier:  identifier,
		Title:       title,
		Author:      strings.Join(authors, ", "),
		ImageURL:    firstNonEmpty(d.Cover.Large, d.Cover.Medium, d.Cover.Small),
		Publisher:   formatPublishers(d.Publishers),
		PublishDate: d.PublishDate,
		Description: description,
	}
}

func (d SearchDoc) toItem() entity.CatalogItem {
	title := d.Title
	if d.Subtitle != "" {
		title = d.Title + ": " + d.Subtitle
	}
	identifier := strings.TrimPrefix(d.Key, "/works/")
	if len(d.ISBN) > 0 {
		identifier = d.ISBN[0]
		// Open Library can return 10 or 13 digit ISBNs. We prefer 13.
		for _, isbn := range d.ISBN {
			if len(isbn) == 13 {
				identifier = isbn
				break
			}
		}
	}
	item := entity.CatalogItem{
		Identifier: identifier,
		Title:      title,
		Author:     strings.Join(d.AuthorNames, ", "),
	}
	if len(d.Publishers) > 0 {
		item.Publisher = d.Publishers[0]
	}
	if d.FirstPublishYear > 0 {
		item.PublishDate = strconv.Itoa(d.FirstPublishYear)
	}
	if d.CoverID > 0 {
		item.ImageURL = fmt.Sprintf("%s/b/id/%d-L.jpg", coversBaseURL, d.CoverID)
	}
	return item
}

func formatPublishers(p []Publisher) string {
	if len(p) == 0 {
		return ""
	}
	names := make([]string, len(p))
	for i, pub := range p {
		names[i] = pub.Name
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseRetryAfter accepts delta-seconds; anything else falls back to one second.
func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
