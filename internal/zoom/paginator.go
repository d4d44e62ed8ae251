// Package zoom provides cursor pagination over Zoom listing endpoints
package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Page is the raw decoded response for one page of a cursor-paginated
// listing. Callers unmarshal Body into the endpoint's response type.
type Page struct {
	Body          json.RawMessage
	NextPageToken string
}

// Pager walks one list endpoint page by page, following the continuation
// token until a page comes back without one. Pages are produced strictly in
// server order; a Pager is single-use, restart by constructing a new one
// with the same endpoint.
type Pager struct {
	client   Doer
	endpoint string
	query    url.Values
	pageSize int

	nextToken string
	started   bool
	done      bool
}

// NewPager creates a pager for the given endpoint and base query values.
func NewPager(client Doer, endpoint string, query url.Values, pageSize int) *Pager {
	if query == nil {
		query = url.Values{}
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Pager{
		client:   client,
		endpoint: endpoint,
		query:    query,
		pageSize: pageSize,
	}
}

// HasNext reports whether another page is available.
func (p *Pager) HasNext() bool {
	return !p.done
}

// Next fetches the next page. Calling Next after the final page returns an
// error; use HasNext to detect exhaustion.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, fmt.Errorf("pager exhausted for %s", p.endpoint)
	}

	q := url.Values{}
	for key, vals := range p.query {
		q[key] = vals
	}
	q.Set("page_size", strconv.Itoa(p.pageSize))
	if p.started && p.nextToken != "" {
		q.Set("next_page_token", p.nextToken)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create page request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}

	var envelope struct {
		NextPageToken string `json:"next_page_token"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode page envelope: %w", err)
	}

	p.started = true
	p.nextToken = envelope.NextPageToken
	if p.nextToken == "" {
		p.done = true
	}

	return &Page{Body: body, NextPageToken: envelope.NextPageToken}, nil
}
