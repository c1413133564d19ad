// Package httpclient provides basic http functions for retrieving real-time feeds.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewFeedClient returns an http client suitable for polling real-time feeds.
// The timeout bounds the whole request including body read.
func NewFeedClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// FetchBytes retrieves the body at url. Any status other than 200 is an error:
// feed servers signal staleness and throttling through status codes, and a
// non-200 body is never a decodable feed.
func FetchBytes(client *http.Client, url string) ([]byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("requesting %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
