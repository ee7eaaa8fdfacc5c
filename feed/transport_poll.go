package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// pollTransport follows the feed with repeated HTTP requests: catch-up
// reads until up-to-date, then live long-polls.
type pollTransport struct {
	base   *url.URL
	client *http.Client
}

func (p *pollTransport) follow(ctx context.Context, s *Subscription) error {
	live := false
	for {
		req, err := s.request(ctx, live)
		if err != nil {
			return err
		}

		batch, err := p.fetch(ctx, req)
		if err != nil {
			return err
		}

		live, err = s.handle(ctx, batch)
		if err != nil {
			return err
		}
	}
}

func (p *pollTransport) fetch(ctx context.Context, req Request) (Batch, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, withQuery(p.base, req).String(), nil)
	if err != nil {
		return Batch{}, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Batch{}, fmt.Errorf("shape request: %w", err)
	}
	defer resp.Body.Close()

	return ReadBatch(resp)
}
