package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go-restaurant-ordering/models"
)

// HTTPRouteProvider asks a distance service for the route from a branch to an
// address: GET {BaseURL}/route?address=&lat=&lng=.
type HTTPRouteProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPRouteProvider(baseURL, apiKey string) *HTTPRouteProvider {
	return &HTTPRouteProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type routeResponse struct {
	Status          string  `json:"status"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	DistanceText    string  `json:"distance_text"`
	DurationText    string  `json:"duration_text"`
}

func (p *HTTPRouteProvider) Route(ctx context.Context, address string, origin models.Branch) (Route, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return Route{}, fmt.Errorf("build route request: %w", err)
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("route request: unexpected status %d", resp.StatusCode)
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("decode route: %w", err)
	}
	if body.Status != "" && body.Status != "OK" {
		return Route{}, fmt.Errorf("route lookup: status %s", body.Status)
	}
	if body.DistanceMeters < 0 {
		return Route{}, fmt.Errorf("route lookup: negative distance %v", body.DistanceMeters)
	}
	return Route{
		DistanceMeters:  body.DistanceMeters,
		DurationSeconds: body.DurationSeconds,
		DistanceText:    body.DistanceText,
		DurationText:    body.DurationText,
	}, nil
}
