// Package macoui resolves the organization (vendor) owning the OUI prefix of a
// MAC address, by querying the api.macvendors.com public service.
//
// The lookup is performed once per newly-seen client and the result is stored
// forever in the clients database, so the free-tier rate limit (~2 lookups per
// second) only matters when bootstrapping a database from a populated network.
package macoui

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// NoVendor is the sentinel stored when the service does not know the OUI.
const NoVendor = "--none--"

const defaultBaseURL = "https://api.macvendors.com"

// minimum pause between two lookups, to stay under the free-tier limit
const minLookupInterval = 600 * time.Millisecond

// Resolver queries the MAC vendor service, rate limiting its own calls.
type Resolver struct {
	baseURL string
	client  *http.Client

	mu         sync.Mutex
	nextLookup time.Time
}

func NewResolver() *Resolver {
	return NewResolverWithBaseURL(defaultBaseURL, &http.Client{Timeout: 10 * time.Second})
}

// NewResolverWithBaseURL allows pointing the resolver at a different endpoint,
// used by unit tests.
func NewResolverWithBaseURL(baseURL string, client *http.Client) *Resolver {
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Lookup returns the vendor string for the OUI prefix of the given MAC
// address, or NoVendor if the service does not know it.
func (r *Resolver) Lookup(ctx context.Context, mac net.HardwareAddr) (string, error) {
	if err := r.throttle(ctx); err != nil {
		return "", err
	}

	// only the first 3 octets (the OUI) are sent to the service
	prefix := mac.String()
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+prefix, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OUI lookup for %s failed: %w", prefix, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(body)), nil
	case http.StatusNotFound:
		// unknown OUI: not an error, just a vendor the registry has no entry for
		return NoVendor, nil
	default:
		return "", fmt.Errorf("OUI lookup for %s returned status %s", prefix, resp.Status)
	}
}

// throttle blocks until the rate limiter allows the next lookup.
func (r *Resolver) throttle(ctx context.Context) error {
	r.mu.Lock()
	wait := time.Until(r.nextLookup)
	r.nextLookup = time.Now().Add(minLookupInterval)
	if wait > 0 {
		r.nextLookup = r.nextLookup.Add(wait)
	}
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
