package geocode

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Address is the street address of a class venue.
type Address struct {
	Line1   string
	City    string
	State   string
	ZipCode string
}

// Client resolves street addresses to coordinates through a
// Nominatim-compatible geocoding API.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a geocoding client against the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    resty.New().SetTimeout(5 * time.Second),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Locate returns the latitude and longitude of the address, or an error
// when the address cannot be resolved.
func (c *Client) Locate(ctx context.Context, addr Address) (float64, float64, error) {
	var results []searchResult

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":     "json",
			"street":     addr.Line1,
			"city":       addr.City,
			"state":      addr.State,
			"postalcode": addr.ZipCode,
			"limit":      "1",
		}).
		SetHeader("User-Agent", "ce-marketplace/1.0").
		SetResult(&results).
		Get(c.baseURL + "/search")

	if err != nil {
		return 0, 0, fmt.Errorf("geocode request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, 0, fmt.Errorf("geocode request failed: status %d", resp.StatusCode())
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("no match for address %q, %s %s", addr.Line1, addr.City, addr.State)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude in geocode response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude in geocode response: %w", err)
	}

	return lat, lon, nil
}
