package triage_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"googlemaps.github.io/maps"

	"kwik.app/dispatch/internal/triage"
)

type fakeGeocoder struct {
	results []maps.GeocodingResult
	err     error
	calls   int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	f.calls++
	return f.results, f.err
}

var _ = Describe("PlaceholderLocator", func() {
	It("uses the pending address and fixed confidence", func() {
		loc := triage.NewPlaceholderLocator(10, 20, 0).Locate(context.Background(), "")
		Expect(loc.Address).To(Equal(triage.PendingAddress))
		Expect(loc.Latitude).To(Equal(10.0))
		Expect(loc.Longitude).To(Equal(20.0))
		Expect(loc.Confidence).To(Equal(0.60))
		Expect(loc.Geocoded).To(BeFalse())
	})

	It("keeps jitter within half the width on each axis", func() {
		l := triage.NewPlaceholderLocator(triage.DefaultBaseLatitude, triage.DefaultBaseLongitude, 0.1)
		for i := 0; i < 100; i++ {
			loc := l.Locate(context.Background(), "Market St")
			Expect(loc.Address).To(Equal("Market St"))
			Expect(loc.Latitude).To(BeNumerically("~", triage.DefaultBaseLatitude, 0.05))
			Expect(loc.Longitude).To(BeNumerically("~", triage.DefaultBaseLongitude, 0.05))
		}
	})

	It("uses the injected random source", func() {
		l := &triage.PlaceholderLocator{BaseLatitude: 1, BaseLongitude: 1, Jitter: 1, Rand: func() float64 { return 1 }}
		loc := l.Locate(context.Background(), "")
		Expect(loc.Latitude).To(Equal(1.5))
		Expect(loc.Longitude).To(Equal(1.5))
	})
})

var _ = Describe("GoogleLocator", func() {
	var (
		geo      *fakeGeocoder
		fallback *triage.PlaceholderLocator
	)

	BeforeEach(func() {
		geo = &fakeGeocoder{}
		fallback = triage.NewPlaceholderLocator(1, 2, 0)
	})

	It("geocodes the extracted address", func() {
		result := maps.GeocodingResult{
			FormattedAddress: "9324 Lincoln Ave, Delaware City, CA",
			AddressComponents: []maps.AddressComponent{
				{LongName: "Delaware City", ShortName: "Delaware City", Types: []string{"locality", "political"}},
				{LongName: "California", ShortName: "CA", Types: []string{"administrative_area_level_1", "political"}},
			},
		}
		result.Geometry.Location = maps.LatLng{Lat: 37.78, Lng: -122.41}
		result.Geometry.LocationType = "ROOFTOP"
		geo.results = []maps.GeocodingResult{result}

		loc := triage.NewGoogleLocatorWithGeocoder(geo, fallback).Locate(context.Background(), "9324 Lincoln Ave")
		Expect(loc.Geocoded).To(BeTrue())
		Expect(loc.Address).To(Equal("9324 Lincoln Ave, Delaware City, CA"))
		Expect(loc.City).To(Equal("Delaware City"))
		Expect(loc.State).To(Equal("CA"))
		Expect(loc.Latitude).To(Equal(37.78))
		Expect(loc.Confidence).To(Equal(0.95))
	})

	It("falls back without an address", func() {
		loc := triage.NewGoogleLocatorWithGeocoder(geo, fallback).Locate(context.Background(), "")
		Expect(geo.calls).To(BeZero())
		Expect(loc.Address).To(Equal(triage.PendingAddress))
		Expect(loc.Geocoded).To(BeFalse())
	})

	It("falls back when geocoding fails", func() {
		geo.err = errors.New("OVER_QUERY_LIMIT")
		loc := triage.NewGoogleLocatorWithGeocoder(geo, fallback).Locate(context.Background(), "Main St")
		Expect(loc.Address).To(Equal("Main St"))
		Expect(loc.Confidence).To(Equal(0.60))
	})

	It("falls back when there are no results", func() {
		loc := triage.NewGoogleLocatorWithGeocoder(geo, fallback).Locate(context.Background(), "nowhere")
		Expect(loc.Geocoded).To(BeFalse())
	})
})
