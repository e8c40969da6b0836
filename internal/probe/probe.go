// Package probe performs single-URL liveness checks and classifies their outcome.
package probe

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkchecker/internal/models"
)

const (
	DefaultUserAgent    = "linkchecker/0"
	DefaultMaxRedirects = 30
)

// Prober issues HEAD requests and follows redirects up to a fixed cap.
type Prober struct {
	client    *http.Client
	userAgent string
}

// New builds a Prober on top of client (NewHTTPClient when nil). The client is copied so the
// caller's redirect policy is left untouched.
func New(client *http.Client, userAgent string, maxRedirects int) *Prober {
	if client == nil {
		client = NewHTTPClient()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	c := *client
	c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}
	return &Prober{client: &c, userAgent: userAgent}
}

// Probe checks rawURL within timeout. Probe-level failures are reported through the result
// status. The returned error is non-nil only when ctx itself is done (the result is then
// meaningless) or when the failure could not be classified, in which case it is an
// *UnclassifiedError and the result carries StatusUnknownError.
func (p *Prober) Probe(ctx context.Context, rawURL string, timeout time.Duration) (models.LinkCheckResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return models.FailedResult(rawURL, models.StatusInvalidURL), nil
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.LinkCheckResult{URL: rawURL}, ctx.Err()
		}
		status := Classify(err)
		if status == models.StatusUnknownError {
			return models.FailedResult(rawURL, status), &UnclassifiedError{URL: rawURL, Err: err}
		}
		return models.FailedResult(rawURL, status), nil
	}
	defer resp.Body.Close()

	return resultFromResponse(rawURL, resp), nil
}

func resultFromResponse(rawURL string, resp *http.Response) models.LinkCheckResult {
	result := models.LinkCheckResult{URL: rawURL, Status: models.StatusCode(resp.StatusCode)}

	chain := redirectChain(resp)
	if len(chain) > 0 {
		first := chain[0].StatusCode
		result.Redirect = &first

		// only permanent redirects are followed up on; the last one in the chain wins
		for _, hop := range chain {
			if hop.StatusCode == http.StatusMovedPermanently {
				result.Location = nil
				if loc := hop.Header.Get("Location"); loc != "" {
					result.Location = &loc
				}
			}
		}
	}

	if resp.StatusCode == http.StatusOK {
		result.Size = contentLength(resp.Header)
	}
	return result
}

// redirectChain returns the redirect responses that led to resp, oldest first.
func redirectChain(resp *http.Response) []*http.Response {
	var chain []*http.Response
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		chain = append(chain, req.Response)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func contentLength(h http.Header) *int64 {
	raw := strings.TrimSpace(h.Get("Content-Length"))
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
