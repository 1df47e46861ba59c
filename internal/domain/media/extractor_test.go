package media

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aeroview/aeroview-api/internal/pkg/geocode"
)

func TestParseAltitude(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"120.5m", f(120.5)},
		{"241/2", f(120.5)},
		{"0/1", f(0)},
		{"35m", f(35)},
		{"", nil},
		{"abcm", nil},
		{"120.5", nil},
		{"1/0", nil},
		{"a/b", nil},
	}

	for _, tt := range tests {
		got := ParseAltitude(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseAltitude(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("ParseAltitude(%q) = nil, want %v", tt.in, *tt.want)
		case tt.want != nil && got != nil && *got != *tt.want:
			t.Errorf("ParseAltitude(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestDecimalDegrees(t *testing.T) {
	tests := []struct {
		deg, min, sec float64
		ref           string
		want          float64
	}{
		{47, 59, 24, "N", 47.99},
		{47, 59, 24, "S", -47.99},
		{7, 51, 0, "E", 7.85},
		{7, 51, 0, "W", -7.85},
		{12, 30, 0, "", 12.5},
	}

	for _, tt := range tests {
		got := DecimalDegrees(tt.deg, tt.min, tt.sec, tt.ref)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DecimalDegrees(%v,%v,%v,%q) = %v, want %v", tt.deg, tt.min, tt.sec, tt.ref, got, tt.want)
		}
	}
}

func TestCanonicalName(t *testing.T) {
	name, ts, ok := CanonicalName(TypeHDR, "2023:04:29 12:14:42")
	if !ok {
		t.Fatal("expected ok for valid timestamp")
	}
	if name != "hd_20230429_121442" {
		t.Errorf("name = %q, want hd_20230429_121442", name)
	}
	want := time.Date(2023, 4, 29, 12, 14, 42, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}

	name, _, ok = CanonicalName(TypePano, "")
	if ok || name != "pa_unknown" {
		t.Errorf("expected pa_unknown for missing timestamp, got %q ok=%v", name, ok)
	}

	name, _, ok = CanonicalName(TypeWideAngle, "garbage")
	if ok || name != "wa_unknown" {
		t.Errorf("expected wa_unknown for malformed timestamp, got %q ok=%v", name, ok)
	}
}

type failingGeocoder struct{}

func (failingGeocoder) Reverse(ctx context.Context, lon, lat float64) (geocode.Result, error) {
	return geocode.Result{}, errors.New("connection refused")
}

type fixedGeocoder struct{ res geocode.Result }

func (g fixedGeocoder) Reverse(ctx context.Context, lon, lat float64) (geocode.Result, error) {
	return g.res, nil
}

func TestApplyGeoFailureLeavesFieldsNil(t *testing.T) {
	e := NewExtractor(failingGeocoder{})
	rec := &MediaRecord{Name: "hd_20230429_121442", Latitude: 47.99, Longitude: 7.84}

	e.applyGeo(context.Background(), rec)

	if rec.Country != nil || rec.Region != nil || rec.Location != nil || rec.PostalCode != nil || rec.Road != nil {
		t.Error("expected all location fields nil after geocode failure")
	}
	if rec.Latitude != 47.99 || rec.Longitude != 7.84 {
		t.Error("coordinates must survive a geocode failure")
	}
}

func TestApplyGeoSuccessFillsFields(t *testing.T) {
	country := "Germany"
	place := "Freiburg"
	e := NewExtractor(fixedGeocoder{res: geocode.Result{Country: &country, Place: &place}})
	rec := &MediaRecord{Name: "wa_20230429_121442"}

	e.applyGeo(context.Background(), rec)

	if rec.Country == nil || *rec.Country != "Germany" {
		t.Errorf("country = %v, want Germany", rec.Country)
	}
	if rec.Location == nil || *rec.Location != "Freiburg" {
		t.Errorf("location = %v, want Freiburg", rec.Location)
	}
	if rec.Region != nil || rec.PostalCode != nil || rec.Road != nil {
		t.Error("absent components must stay nil")
	}
}

func TestFirstJPEGMissing(t *testing.T) {
	if _, err := firstJPEG(t.TempDir()); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestDroneModel(t *testing.T) {
	if got := DroneModel("FC8482"); got != "DJI Mini 4 Pro" {
		t.Errorf("DroneModel(FC8482) = %q", got)
	}
	if got := DroneModel("something-else"); got != "unknown" {
		t.Errorf("DroneModel fallback = %q, want unknown", got)
	}
}

func f(v float64) *float64 { return &v }
