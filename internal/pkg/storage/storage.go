// Package storage wraps the object-storage side of the media archive:
// derivative upload under a canonical name prefix, prefix listing and
// destructive prefix removal for reconciliation.
package storage

// Config holds S3 connection settings (AWS or any S3-compatible endpoint)
type Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// ManifestKey is the object written last by UploadDirectory. Its presence
// under a prefix marks the upload as complete; a prefix without it is
// treated as partial and retried.
const ManifestKey = ".manifest"
