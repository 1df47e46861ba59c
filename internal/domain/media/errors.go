package media

import "errors"

var (
	ErrNoImage        = errors.New("no JPEG found in folder")
	ErrNoSource       = errors.New("no source TIFF found in folder")
	ErrUnknownType    = errors.New("could not classify folder")
	ErrRecordNotFound = errors.New("media record not found")
)
