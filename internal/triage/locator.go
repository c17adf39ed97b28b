package triage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"googlemaps.github.io/maps"

	"kwik.app/dispatch/internal/model"
)

const (
	PendingAddress           = "Location pending verification"
	PlaceholderConfidence    = 0.60
	DefaultBaseLatitude      = 37.7749
	DefaultBaseLongitude     = -122.4194
	DefaultPlaceholderJitter = 0.1
)

// Locator resolves the caller's position. It never fails; when nothing better
// is known it returns a placeholder that is not geocoded. Implementations
// return once ctx is done.
type Locator interface {
	Locate(ctx context.Context, address string) model.Location
}

// PlaceholderLocator scatters positions uniformly within Jitter degrees
// (total width) around a base point. Jitter 0 is deterministic.
type PlaceholderLocator struct {
	BaseLatitude  float64
	BaseLongitude float64
	Jitter        float64
	Rand          func() float64
}

func NewPlaceholderLocator(baseLat, baseLng, jitter float64) *PlaceholderLocator {
	return &PlaceholderLocator{
		BaseLatitude:  baseLat,
		BaseLongitude: baseLng,
		Jitter:        jitter,
		Rand:          rand.Float64,
	}
}

func (l *PlaceholderLocator) Locate(_ context.Context, address string) model.Location {
	if address == "" {
		address = PendingAddress
	}
	return model.Location{
		Address:    address,
		Latitude:   l.BaseLatitude + l.offset(),
		Longitude:  l.BaseLongitude + l.offset(),
		Confidence: PlaceholderConfidence,
		Geocoded:   false,
	}
}

func (l *PlaceholderLocator) offset() float64 {
	if l.Jitter == 0 || l.Rand == nil {
		return 0
	}
	return (l.Rand() - 0.5) * l.Jitter
}

// geocoder is the subset of *maps.Client used here.
type geocoder interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleLocator geocodes the address extracted from the transcript and falls
// back to a placeholder when there is no address or the lookup fails.
type GoogleLocator struct {
	client   geocoder
	fallback Locator
}

func NewGoogleLocator(apiKey string, fallback Locator) (*GoogleLocator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &GoogleLocator{client: client, fallback: fallback}, nil
}

func (l *GoogleLocator) Locate(ctx context.Context, address string) model.Location {
	if address == "" {
		return l.fallback.Locate(ctx, address)
	}

	results, err := l.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil || len(results) == 0 {
		slog.WarnContext(ctx, "geocoding failed, using placeholder location",
			"error", err,
			"results", len(results))
		return l.fallback.Locate(ctx, address)
	}

	best := results[0]
	loc := model.Location{
		Address:    best.FormattedAddress,
		Latitude:   best.Geometry.Location.Lat,
		Longitude:  best.Geometry.Location.Lng,
		Confidence: geocodeConfidence(best.Geometry.LocationType),
		Geocoded:   true,
	}
	for _, c := range best.AddressComponents {
		switch {
		case slices.Contains(c.Types, "locality"):
			loc.City = c.LongName
		case slices.Contains(c.Types, "administrative_area_level_1"):
			loc.State = c.ShortName
		}
	}
	return loc
}

func geocodeConfidence(locationType string) float64 {
	switch locationType {
	case "ROOFTOP":
		return 0.95
	case "RANGE_INTERPOLATED":
		return 0.85
	case "GEOMETRIC_CENTER":
		return 0.75
	default:
		return 0.65
	}
}
