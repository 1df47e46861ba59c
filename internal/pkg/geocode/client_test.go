package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleResponse = `{
	"features": [
		{"id": "address.123", "text": "Hauptstrasse"},
		{"id": "postcode.456", "text": "79104"},
		{"id": "place.789", "text": "Freiburg"},
		{"id": "region.12", "text": "Baden-Wurttemberg"},
		{"id": "country.34", "text": "Germany"}
	]
}`

func TestReverseParsesComponents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("access_token") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-token", time.Second)
	res, err := client.Reverse(context.Background(), 7.84, 47.99)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	checks := []struct {
		name string
		got  *string
		want string
	}{
		{"road", res.Road, "Hauptstrasse"},
		{"postalCode", res.PostalCode, "79104"},
		{"place", res.Place, "Freiburg"},
		{"region", res.Region, "Baden-Wurttemberg"},
		{"country", res.Country, "Germany"},
	}
	for _, c := range checks {
		if c.got == nil {
			t.Errorf("%s: expected %q, got nil", c.name, c.want)
			continue
		}
		if *c.got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, *c.got)
		}
	}
}

func TestReverseMissingComponentsAreNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features": [{"id": "country.1", "text": "Iceland"}]}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "token", time.Second)
	res, err := client.Reverse(context.Background(), -21.9, 64.1)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if res.Country == nil || *res.Country != "Iceland" {
		t.Errorf("expected country Iceland, got %v", res.Country)
	}
	if res.Road != nil || res.PostalCode != nil || res.Place != nil || res.Region != nil {
		t.Error("expected absent components to stay nil")
	}
}

func TestReverseHTTPErrorReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "token", time.Second)
	if _, err := client.Reverse(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestReverseMalformedBodyReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "no features here"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "token", time.Second)
	if _, err := client.Reverse(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error on missing features array")
	}
}
