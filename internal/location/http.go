package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotConfigured is returned when no geolocation endpoint is set.
var ErrNotConfigured = errors.New("serviço de localização não configurado")

// HTTPLocator reads the current coordinates from a geolocation endpoint
// returning a JSON object with latitude/longitude fields.
type HTTPLocator struct {
	url  string
	http *http.Client
}

func NewLocator(geolocateURL string, timeout time.Duration) *HTTPLocator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLocator{url: geolocateURL, http: &http.Client{Timeout: timeout}}
}

func (l *HTTPLocator) Current(ctx context.Context) (float64, float64, error) {
	if l.url == "" {
		return 0, 0, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("falha ao obter localização: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, 0, fmt.Errorf("serviço de localização respondeu %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, 0, fmt.Errorf("resposta de localização inválida: %w", err)
	}

	lat, okLat := coordinate(payload, "latitude", "lat")
	lon, okLon := coordinate(payload, "longitude", "lon", "lng")
	if !okLat || !okLon {
		return 0, 0, errors.New("resposta de localização sem coordenadas")
	}
	return lat, lon, nil
}

// HTTPGeocoder resolves coordinates to an address via a reverse-geocode
// endpoint (Nominatim-style: lat/lon query, display_name in the answer).
type HTTPGeocoder struct {
	url  string
	http *http.Client
}

func NewGeocoder(geocodeURL string, timeout time.Duration) *HTTPGeocoder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGeocoder{url: geocodeURL, http: &http.Client{Timeout: timeout}}
}

// Reverse returns a human-readable address, or "" when the service is
// unconfigured or returns nothing — the caller falls back to bare
// coordinates, never an error the user has to act on.
func (g *HTTPGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (string, error) {
	if g.url == "" {
		return "", nil
	}
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("falha ao geocodificar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("serviço de geocodificação respondeu %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("resposta de geocodificação inválida: %w", err)
	}
	for _, key := range []string{"display_name", "address", "endereco"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value, nil
		}
	}
	return "", nil
}

func coordinate(payload map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return v, true
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}
