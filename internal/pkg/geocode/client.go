// Package geocode reverse-geocodes GPS coordinates into address components
// through the Mapbox geocoding API.
package geocode

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultTimeout = 10 * time.Second

// Result holds reverse-geocoded address components. Any field may be nil
// when the corresponding component is absent from the API response.
type Result struct {
	Country    *string
	Region     *string
	Place      *string
	PostalCode *string
	Road       *string
}

// Client is a Mapbox reverse-geocoding HTTP client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a new geocoding client. An empty token is allowed; the
// caller is expected to skip geocoding entirely in that case.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Reverse resolves longitude/latitude into address components. Component
// types are matched by feature ID prefix (address, postcode, place, region,
// country). Callers treat any returned error as "no location available".
func (c *Client) Reverse(ctx context.Context, longitude, latitude float64) (Result, error) {
	var res Result

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json?%s",
		c.baseURL, longitude, latitude,
		url.Values{"access_token": {c.token}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return res, fmt.Errorf("geocode request error: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("geocode request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return res, fmt.Errorf("geocode http error: status=%d body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, fmt.Errorf("geocode read error: %w", err)
	}

	features := gjson.GetBytes(body, "features")
	if !features.Exists() || !features.IsArray() {
		return res, fmt.Errorf("geocode parse error: no features array")
	}

	features.ForEach(func(_, feature gjson.Result) bool {
		id := feature.Get("id").String()
		text := feature.Get("text").String()
		if text == "" {
			return true
		}

		switch {
		case strings.HasPrefix(id, "address."):
			res.Road = &text
		case strings.HasPrefix(id, "postcode."):
			res.PostalCode = &text
		case strings.HasPrefix(id, "place."):
			res.Place = &text
		case strings.HasPrefix(id, "region."):
			res.Region = &text
		case strings.HasPrefix(id, "country."):
			res.Country = &text
		}
		return true
	})

	return res, nil
}
