package httpx

import (
	"context"
	"net/http"
)

// PaginationEnvelope is the subset of a paginated JSON response this client
// follows: the optional next-page cursor URL.
type PaginationEnvelope struct {
	Next string `json:"next"`
}

// CursorPager follows a response's pagination.next URL until it is empty
// or MaxPages is reached, handing each page to the caller's decode
// function, which accumulates results. MaxPages <= 0 means unbounded.
type CursorPager struct {
	Client   *Client
	MaxPages int
}

// FetchAll issues startURL, then repeatedly follows the cursor URL that
// decode returns, calling decode once per fetched page. decode must
// populate the caller's result type and return the next cursor URL
// (empty string stops pagination).
func (p *CursorPager) FetchAll(ctx context.Context, startURL string, headers map[string]string, decode func(body []byte) (next string, err error)) error {
	url := startURL
	pages := 0
	for url != "" {
		if p.MaxPages > 0 && pages >= p.MaxPages {
			return nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		var raw rawBody
		if _, err := p.Client.DoJSON(ctx, req, &raw); err != nil {
			return err
		}
		next, err := decode(raw.bytes)
		if err != nil {
			return err
		}
		url = next
		pages++
	}
	return nil
}

// rawBody captures the page's raw JSON bytes so decode can unmarshal into
// whatever typed shape the caller needs while still sharing DoJSON's
// retry/error handling.
type rawBody struct {
	bytes []byte
}

func (r *rawBody) UnmarshalJSON(data []byte) error {
	r.bytes = append([]byte(nil), data...)
	return nil
}
