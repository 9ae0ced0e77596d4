// Package services holds the third-party API clients. Every outbound call
// goes through the resilience engine with that service's config; raw
// request/response shaping stays here.
package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stylebot/server/internal/cache"
	"github.com/stylebot/server/internal/resilience"
	logx "github.com/stylebot/server/pkg/logger"
)

const (
	placesTextSearchURL = "https://places.googleapis.com/v1/places:searchText"
	placesCachePrefix   = "places:"
	placesFieldMask     = "places.id,places.displayName,places.formattedAddress," +
		"places.rating,places.userRatingCount,places.currentOpeningHours.openNow," +
		"places.nationalPhoneNumber,places.websiteUri,places.googleMapsUri,places.types"
)

// activityQueryTerms maps user-friendly activity words onto search phrasing.
var activityQueryTerms = map[string]string{
	"yoga":         "yoga studios",
	"pilates":      "pilates studios",
	"gym":          "gyms",
	"fitness":      "fitness centers",
	"spin":         "spin studios",
	"cycling":      "indoor cycling studios",
	"swimming":     "swimming pools",
	"spa":          "spas",
	"wellness":     "wellness centers",
	"crossfit":     "crossfit gyms",
	"boxing":       "boxing gyms",
	"martial arts": "martial arts gyms",
	"dance":        "dance fitness studios",
	"barre":        "barre studios",
}

// Place is one structured search result.
type Place struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Rating      float64  `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`
	IsOpen      *bool    `json:"is_open,omitempty"`
	Types       []string `json:"types,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	MapsURL     string   `json:"google_maps_url,omitempty"`
}

// FormatForDisplay renders a place as chat-friendly lines.
func (p Place) FormatForDisplay() string {
	parts := []string{fmt.Sprintf("**%s**", p.Name)}

	if p.Rating > 0 {
		rating := fmt.Sprintf("%.1f", p.Rating)
		if p.RatingCount > 0 {
			rating += fmt.Sprintf(" (%d reviews)", p.RatingCount)
		}
		parts = append(parts, "⭐ "+rating)
	}

	parts = append(parts, "📍 "+p.Address)

	if p.IsOpen != nil {
		if *p.IsOpen {
			parts = append(parts, "🟢 Open now")
		} else {
			parts = append(parts, "🔴 Closed")
		}
	}

	if p.Phone != "" {
		parts = append(parts, "📞 "+p.Phone)
	}

	return strings.Join(parts, "\n")
}

// PlacesClient searches fitness places through the Google Places API (New),
// with search results cached in the shared store.
type PlacesClient struct {
	apiKey string
	httpc  *http.Client
	store  cache.Store
	cfg    resilience.ServiceConfig
}

func NewPlacesClient(apiKey string, store cache.Store) *PlacesClient {
	cfg := resilience.NewServiceConfig(resilience.ServicePlaces)
	return &PlacesClient{
		apiKey: apiKey,
		httpc:  &http.Client{Timeout: cfg.Timeout},
		store:  store,
		cfg:    cfg,
	}
}

// Enabled reports whether an API key is configured.
func (c *PlacesClient) Enabled() bool {
	return c.apiKey != ""
}

// SearchStudios finds fitness places for an activity near a location. The
// call is protected: breaker, limiter, retry, and a 30-minute result cache
// keyed on the normalised query.
func (c *PlacesClient) SearchStudios(ctx context.Context, activity, location string, maxResults int) ([]Place, error) {
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 5
	}

	query := buildStudioQuery(activity, location)
	cacheKey := placesCacheKey(query)

	result := resilience.Call(ctx, c.cfg,
		func(ctx context.Context) (any, error) {
			return c.textSearch(ctx, query, maxResults)
		},
		resilience.WithCache(c.cacheGet, c.cacheSet, cacheKey),
	)

	if !result.Success {
		return nil, &resilience.CallError{
			Service:  c.cfg.Name,
			Category: result.Category,
			Message:  result.Error,
		}
	}

	places, err := coercePlaces(result.Value)
	if err != nil {
		return nil, err
	}
	return places, nil
}

// StudioDetails looks up a single place by ID with the same protection and
// cache as SearchStudios. A nil result means the place no longer exists.
func (c *PlacesClient) StudioDetails(ctx context.Context, placeID string) (*Place, error) {
	placeID = strings.TrimPrefix(strings.TrimSpace(placeID), "places/")
	if placeID == "" {
		return nil, nil
	}

	cacheKey := placesCacheKey("details:" + placeID)

	result := resilience.Call(ctx, c.cfg,
		func(ctx context.Context) (any, error) {
			return c.placeDetails(ctx, placeID)
		},
		resilience.WithCache(c.cacheGet, c.cacheSet, cacheKey),
	)

	if !result.Success {
		return nil, &resilience.CallError{
			Service:  c.cfg.Name,
			Category: result.Category,
			Message:  result.Error,
		}
	}

	places, err := coercePlaces(result.Value)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, nil
	}
	return &places[0], nil
}

func buildStudioQuery(activity, location string) string {
	term := strings.ToLower(strings.TrimSpace(activity))
	if mapped, ok := activityQueryTerms[term]; ok {
		term = mapped
	} else if term == "" {
		term = "fitness studios"
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return term
	}
	return term + " in " + location
}

func placesCacheKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(query)))
	return placesCachePrefix + hex.EncodeToString(sum[:])
}

// textSearch is the raw HTTP call, invoked only through the engine.
func (c *PlacesClient) textSearch(ctx context.Context, query string, maxResults int) ([]Place, error) {
	body, err := json.Marshal(map[string]any{
		"textQuery":      query,
		"maxResultCount": maxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, placesTextSearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("places search returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed struct {
		Places []struct {
			ID          string `json:"id"`
			DisplayName struct {
				Text string `json:"text"`
			} `json:"displayName"`
			FormattedAddress    string   `json:"formattedAddress"`
			Rating              float64  `json:"rating"`
			UserRatingCount     int      `json:"userRatingCount"`
			CurrentOpeningHours *struct {
				OpenNow bool `json:"openNow"`
			} `json:"currentOpeningHours"`
			NationalPhoneNumber string   `json:"nationalPhoneNumber"`
			WebsiteURI          string   `json:"websiteUri"`
			GoogleMapsURI       string   `json:"googleMapsUri"`
			Types               []string `json:"types"`
		} `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	places := make([]Place, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		place := Place{
			PlaceID:     p.ID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Rating:      p.Rating,
			RatingCount: p.UserRatingCount,
			Types:       p.Types,
			Phone:       p.NationalPhoneNumber,
			Website:     p.WebsiteURI,
			MapsURL:     p.GoogleMapsURI,
		}
		if p.CurrentOpeningHours != nil {
			open := p.CurrentOpeningHours.OpenNow
			place.IsOpen = &open
		}
		places = append(places, place)
	}
	return places, nil
}

// placeDetails fetches one place. The details endpoint uses a top-level
// field mask rather than the "places."-prefixed one.
func (c *PlacesClient) placeDetails(ctx context.Context, placeID string) ([]Place, error) {
	url := "https://places.googleapis.com/v1/places/" + placeID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", strings.ReplaceAll(placesFieldMask, "places.", ""))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("place details returned %d: %s", resp.StatusCode, string(data))
	}

	var p struct {
		ID          string `json:"id"`
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress    string  `json:"formattedAddress"`
		Rating              float64 `json:"rating"`
		UserRatingCount     int     `json:"userRatingCount"`
		CurrentOpeningHours *struct {
			OpenNow bool `json:"openNow"`
		} `json:"currentOpeningHours"`
		NationalPhoneNumber string   `json:"nationalPhoneNumber"`
		WebsiteURI          string   `json:"websiteUri"`
		GoogleMapsURI       string   `json:"googleMapsUri"`
		Types               []string `json:"types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode place details: %w", err)
	}

	place := Place{
		PlaceID:     p.ID,
		Name:        p.DisplayName.Text,
		Address:     p.FormattedAddress,
		Rating:      p.Rating,
		RatingCount: p.UserRatingCount,
		Types:       p.Types,
		Phone:       p.NationalPhoneNumber,
		Website:     p.WebsiteURI,
		MapsURL:     p.GoogleMapsURI,
	}
	if p.CurrentOpeningHours != nil {
		open := p.CurrentOpeningHours.OpenNow
		place.IsOpen = &open
	}
	return []Place{place}, nil
}

func (c *PlacesClient) cacheGet(ctx context.Context, key string) (any, bool) {
	data, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal([]byte(data), &places); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("cached places entry unreadable, ignoring")
		return nil, false
	}
	return places, true
}

func (c *PlacesClient) cacheSet(ctx context.Context, key string, value any) {
	places, err := coercePlaces(value)
	if err != nil {
		return
	}
	data, err := json.Marshal(places)
	if err != nil {
		return
	}
	c.store.Set(ctx, key, string(data), int(c.cfg.CacheTTL.Seconds()))
}

func coercePlaces(v any) ([]Place, error) {
	places, ok := v.([]Place)
	if !ok {
		return nil, fmt.Errorf("unexpected places result type %T", v)
	}
	return places, nil
}
