// Package hh is the hh.ru vacancies API client. It fetches full
// paginated result sets and normalizes responses into Vacancy records,
// tolerating absent optional fields.
package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vacanbot/pkg/logx"
)

const DefaultBaseURL = "https://api.hh.ru/vacancies"

type Config struct {
	BaseURL        string
	PageSize       int           // default 20
	RequestTimeout time.Duration // default 15s
}

type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	log      logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	size := cfg.PageSize
	if size <= 0 {
		size = 20
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL:  base,
		pageSize: size,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// FetchAll runs one query across all result pages.
//
// Page 0 doubles as the page-count probe; if it fails the whole query
// soft-fails (Result.Err set, no vacancies). Pagination stops early on
// an empty or short page. A failure on a later page keeps what was
// gathered and marks the result truncated. Failed page fetches are
// never retried here; the next polling tick re-queries anyway.
func (c *Client) FetchAll(ctx context.Context, params url.Values) Result {
	first, err := c.fetchPage(ctx, params, 0)
	if err != nil {
		c.log.Warn("vacancy query failed on first page", logx.Err(err))
		return Result{Err: err}
	}

	var out []Vacancy
	for _, rv := range first.Items {
		out = append(out, rv.normalize())
	}
	if len(first.Items) == 0 || len(first.Items) < c.pageSize {
		return Result{Vacancies: out}
	}
	// A full page with no usable page count means the rest of the
	// result set is unreachable; treat the response as malformed.
	if first.Pages <= 0 {
		err := fmt.Errorf("full first page but page count is %d", first.Pages)
		c.log.Warn("vacancy query returned no usable page count", logx.Err(err))
		return Result{Err: err}
	}

	for page := 1; page < first.Pages; page++ {
		p, err := c.fetchPage(ctx, params, page)
		if err != nil {
			c.log.Warn("vacancy page fetch failed; keeping partial results",
				logx.Int("page", page), logx.Int("got", len(out)), logx.Err(err))
			return Result{Vacancies: out, Truncated: true}
		}
		for _, rv := range p.Items {
			out = append(out, rv.normalize())
		}
		if len(p.Items) == 0 || len(p.Items) < c.pageSize {
			break
		}
	}
	return Result{Vacancies: out}
}

func (c *Client) fetchPage(ctx context.Context, params url.Values, page int) (*pageResponse, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var p pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return &p, nil
}
