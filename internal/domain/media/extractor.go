package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/aeroview/aeroview-api/internal/pkg/geocode"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// Geocoder resolves coordinates into address components. A failed lookup is
// never fatal to extraction.
type Geocoder interface {
	Reverse(ctx context.Context, longitude, latitude float64) (geocode.Result, error)
}

// Extractor derives a MediaRecord from the EXIF of a representative image.
type Extractor struct {
	geocoder Geocoder
}

// NewExtractor creates an Extractor. geocoder may be nil, in which case all
// location fields stay empty.
func NewExtractor(geocoder Geocoder) *Extractor {
	return &Extractor{geocoder: geocoder}
}

// Extract reads EXIF from the first JPEG in folder and builds the canonical
// record for it. Returns an error when no JPEG is present or EXIF cannot be
// decoded; the caller skips the folder in that case.
func (e *Extractor) Extract(ctx context.Context, folder string, mediaType Type, author string) (*MediaRecord, error) {
	jpegPath, err := firstJPEG(folder)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(jpegPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", jpegPath, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF from %s: %w", jpegPath, err)
	}

	rec := &MediaRecord{
		Type:    mediaType,
		Author:  author,
		Drone:   "unknown",
		NoViews: 0,
	}

	if model, err := tagString(x, exif.Model); err == nil {
		rec.Drone = DroneModel(model)
	}

	rec.DateTimeString = timestampString(x)
	name, ts, ok := CanonicalName(mediaType, rec.DateTimeString)
	rec.Name = name
	if ok {
		rec.DateTime = ts
	} else {
		// No usable EXIF timestamp; fall back to the file's mod time so the
		// record still sorts.
		if info, serr := os.Stat(jpegPath); serr == nil {
			rec.DateTime = info.ModTime()
		} else {
			rec.DateTime = time.Now()
		}
	}

	rec.Altitude = altitudeFrom(x)

	if lat, ok := coordinateFrom(x, exif.GPSLatitude, exif.GPSLatitudeRef); ok {
		rec.Latitude = lat
	}
	if lon, ok := coordinateFrom(x, exif.GPSLongitude, exif.GPSLongitudeRef); ok {
		rec.Longitude = lon
	}

	e.applyGeo(ctx, rec)

	return rec, nil
}

// applyGeo fills the reverse-geocoded address components. Lookup failure
// leaves every location field nil and extraction continues.
func (e *Extractor) applyGeo(ctx context.Context, rec *MediaRecord) {
	if e.geocoder == nil {
		return
	}

	res, err := e.geocoder.Reverse(ctx, rec.Longitude, rec.Latitude)
	if err != nil {
		log.Warn().Err(err).Str("name", rec.Name).Msg("Reverse geocoding failed, location fields stay empty")
		return
	}

	rec.Country = res.Country
	rec.Region = res.Region
	rec.Location = res.Place
	rec.PostalCode = res.PostalCode
	rec.Road = res.Road
}

// CanonicalName derives the unique media name from the type prefix and an
// EXIF-formatted timestamp. A timestamp that does not parse yields
// "<prefix>unknown" and ok=false.
func CanonicalName(t Type, dateTimeString string) (string, time.Time, bool) {
	ts, err := time.Parse(exifTimeLayout, dateTimeString)
	if err != nil {
		return t.Prefix() + "unknown", time.Time{}, false
	}
	return t.Prefix() + ts.Format("20060102_150405"), ts, true
}

// ParseAltitude parses a textual EXIF altitude: a float suffixed with "m"
// ("120.5m") or a rational ("241/2"). Malformed input yields nil, never an
// error.
func ParseAltitude(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if strings.HasSuffix(s, "m") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64)
		if err != nil {
			return nil
		}
		return &v
	}

	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return nil
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return nil
	}
	v := n / d
	return &v
}

// DecimalDegrees converts a degrees/minutes/seconds triplet to decimal
// degrees, negated for the southern and western hemispheres. A missing ref
// leaves the value as-is.
func DecimalDegrees(deg, min, sec float64, ref string) float64 {
	dd := deg + min/60 + sec/3600
	if ref == "S" || ref == "W" {
		dd = -dd
	}
	return dd
}

// firstJPEG returns the alphabetically first JPEG in folder, or in
// folder/original when the folder is already organized. Multiple candidates
// log a warning; only the first is read.
func firstJPEG(folder string) (string, error) {
	for _, dir := range []string{folder, filepath.Join(folder, "original")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		var jpegs []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext == ".jpg" || ext == ".jpeg" {
				jpegs = append(jpegs, e.Name())
			}
		}

		if len(jpegs) == 0 {
			continue
		}
		if len(jpegs) > 1 {
			log.Warn().
				Str("folder", dir).
				Int("count", len(jpegs)).
				Str("using", jpegs[0]).
				Msg("Multiple JPEGs found, reading EXIF from the first only")
		}
		return filepath.Join(dir, jpegs[0]), nil
	}

	return "", fmt.Errorf("%w: %s", ErrNoImage, folder)
}

func timestampString(x *exif.Exif) string {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		if s, err := tagString(x, field); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func tagString(x *exif.Exif, field exif.FieldName) (string, error) {
	tag, err := x.Get(field)
	if err != nil {
		return "", err
	}
	return tag.StringVal()
}

func altitudeFrom(x *exif.Exif) *float64 {
	tag, err := x.Get(exif.GPSAltitude)
	if err != nil {
		return nil
	}

	if num, den, err := tag.Rat2(0); err == nil && den != 0 {
		v := float64(num) / float64(den)
		return &v
	}

	s, err := tag.StringVal()
	if err != nil {
		s = strings.Trim(tag.String(), `"`)
	}
	return ParseAltitude(s)
}

func coordinateFrom(x *exif.Exif, field, refField exif.FieldName) (float64, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, false
	}

	var parts [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			if i == 0 {
				return 0, false
			}
			break
		}
		parts[i] = float64(num) / float64(den)
	}

	ref := ""
	if refTag, err := x.Get(refField); err == nil {
		if s, err := refTag.StringVal(); err == nil {
			ref = s
		}
	}

	return DecimalDegrees(parts[0], parts[1], parts[2], ref), true
}
