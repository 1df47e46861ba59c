package media

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type classifies a media item and selects its processing path.
type Type string

const (
	TypeHDR       Type = "hdr"
	TypePano      Type = "pano"
	TypeWideAngle Type = "wide_angle"
	TypeUnknown   Type = "unknown"
)

// Prefix returns the canonical-name prefix for the type.
func (t Type) Prefix() string {
	switch t {
	case TypeHDR:
		return "hd_"
	case TypePano:
		return "pa_"
	case TypeWideAngle:
		return "wa_"
	}
	return ""
}

// Viewer returns the frontend viewer kind for the type.
func (t Type) Viewer() string {
	if t == TypePano {
		return "pano"
	}
	return "img"
}

// droneModels maps the EXIF camera-model tag to a human-readable drone name.
// Unmatched models fall back to "unknown".
var droneModels = map[string]string{
	"FC220":   "DJI Mavic Pro",
	"FC3170":  "DJI Mavic Air 2",
	"FC3582":  "DJI Mini 3 Pro",
	"FC7303":  "DJI Mini 2",
	"FC8482":  "DJI Mini 4 Pro",
	"L1D-20c": "DJI Mavic 2 Pro",
}

// Authors is the fixed contributor allow-list. It is the single source of
// the author constraint: record validation and CLI startup checks both
// derive from it.
var Authors = []string{"jonas", "mara", "till"}

// ValidateAuthor checks author against the allow-list.
func ValidateAuthor(author string) error {
	if !slices.Contains(Authors, author) {
		return fmt.Errorf("author %q is not allowed (must be one of %s)", author, strings.Join(Authors, ", "))
	}
	return nil
}

// Level describes one tile-pyramid zoom level of a panorama.
type Level struct {
	TileSize     int  `bson:"tileSize" json:"tileSize"`
	Size         int  `bson:"size" json:"size"`
	FallbackOnly bool `bson:"fallbackOnly,omitempty" json:"fallbackOnly,omitempty"`
}

// ViewParameters is the initial camera orientation of the panorama viewer.
type ViewParameters struct {
	Yaw   float64 `bson:"yaw" json:"yaw"`
	Pitch float64 `bson:"pitch" json:"pitch"`
	FOV   float64 `bson:"fov" json:"fov"`
}

// PanoData is the panorama-specific payload recovered from the authoring
// tool's export.
type PanoData struct {
	Levels                []Level
	InitialViewParameters *ViewParameters
}

// MediaRecord is the canonical persisted record of one media item, keyed by
// Name. Levels and InitialViewParameters are populated for pano items only.
type MediaRecord struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name                  string             `bson:"name" json:"name" validate:"required"`
	Type                  Type               `bson:"type" json:"type" validate:"required,oneof=hdr pano wide_angle"`
	Author                string             `bson:"author" json:"author" validate:"required,author"`
	Drone                 string             `bson:"drone" json:"drone"`
	DateTimeString        string             `bson:"dateTimeString" json:"dateTimeString"`
	DateTime              time.Time          `bson:"dateTime" json:"dateTime" validate:"required"`
	Latitude              float64            `bson:"latitude" json:"latitude"`
	Longitude             float64            `bson:"longitude" json:"longitude"`
	Altitude              *float64           `bson:"altitude" json:"altitude"`
	Country               *string            `bson:"country" json:"country"`
	Region                *string            `bson:"region" json:"region"`
	Location              *string            `bson:"location" json:"location"`
	PostalCode            *string            `bson:"postalCode" json:"postalCode"`
	Road                  *string            `bson:"road" json:"road"`
	NoViews               int                `bson:"noViews" json:"noViews" validate:"gte=0"`
	Levels                []Level            `bson:"levels,omitempty" json:"levels,omitempty"`
	InitialViewParameters *ViewParameters    `bson:"initialViewParameters,omitempty" json:"initialViewParameters,omitempty"`
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	// "author" resolves against the Authors table instead of a hardcoded
	// oneof list, so the allow-list lives in exactly one place.
	if err := v.RegisterValidation("author", func(fl validator.FieldLevel) bool {
		return slices.Contains(Authors, fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks the record against the persistence contract (canonical
// name present, known type, allow-listed author, sortable timestamp).
func (r *MediaRecord) Validate() error {
	return validate.Struct(r)
}

// DroneModel resolves an EXIF camera-model tag to a drone name.
func DroneModel(exifModel string) string {
	if name, ok := droneModels[exifModel]; ok {
		return name
	}
	return "unknown"
}
