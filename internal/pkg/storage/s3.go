package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

const (
	uploadPartSize    = 5 * 1024 * 1024 // 5 MiB
	uploadConcurrency = 4
	deleteBatchSize   = 1000
)

// MediaStorage implements derivative upload and reconciliation primitives
// against a single S3 bucket.
type MediaStorage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewMediaStorage creates a new S3-backed media storage client
func NewMediaStorage(cfg Config) (*MediaStorage, error) {
	// Custom endpoint resolver for S3-compatible services (MinIO etc.)
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
		u.Concurrency = uploadConcurrency
	})

	return &MediaStorage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
	}, nil
}

// PrefixExists reports whether a completed upload exists under "<name>/".
// It looks specifically for the manifest object written last by
// UploadDirectory, so a partially failed prior upload does not count.
func (s *MediaStorage) PrefixExists(ctx context.Context, name string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(name + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list prefix %s: %w", name, err)
	}
	if len(out.Contents) == 0 {
		return false, nil
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(name, ManifestKey)),
	})
	if err != nil {
		if isNotFound(err) {
			log.Warn().Str("name", name).Msg("Prefix exists without manifest, treating as partial upload")
			return false, nil
		}
		return false, fmt.Errorf("failed to check manifest for %s: %w", name, err)
	}
	return true, nil
}

// UploadDirectory walks localDir and uploads every regular file (dotfiles
// skipped) under the "<name>/" prefix, preserving relative paths. The first
// failed upload aborts the whole call; already-transferred objects are left
// in place and a later retry starts over (the missing manifest keeps
// PrefixExists from treating the partial prefix as done).
func (s *MediaStorage) UploadDirectory(ctx context.Context, localDir, name string) error {
	files, err := LocalFiles(localDir)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", localDir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("nothing to upload in %s", localDir)
	}

	var keys []string
	for _, rel := range files {
		key := name + "/" + rel

		f, err := os.Open(filepath.Join(localDir, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}

		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:               aws.String(s.bucket),
			Key:                  aws.String(key),
			Body:                 f,
			ContentType:          aws.String(contentTypeFor(rel)),
			ServerSideEncryption: types.ServerSideEncryptionAes256,
			StorageClass:         types.StorageClassStandardIa,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		log.Debug().Str("key", key).Msg("Uploaded object")
		keys = append(keys, key)
	}

	manifest := strings.Join(keys, "\n") + "\n"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(path.Join(name, ManifestKey)),
		Body:                 strings.NewReader(manifest),
		ContentType:          aws.String("text/plain"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		StorageClass:         types.StorageClassStandardIa,
	})
	if err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", name, err)
	}

	log.Info().Str("name", name).Int("files", len(keys)).Msg("Upload complete")
	return nil
}

// ListTopLevelPrefixes returns all first-level "directory" names in the
// bucket, without trailing slashes.
func (s *MediaStorage) ListTopLevelPrefixes(ctx context.Context) ([]string, error) {
	var prefixes []string
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket prefixes: %w", err)
		}

		for _, p := range out.CommonPrefixes {
			prefixes = append(prefixes, strings.TrimSuffix(aws.ToString(p.Prefix), "/"))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	return prefixes, nil
}

// DeletePrefix removes every object under "<name>/", looping over paginated
// listings until no continuation token remains. Every key is logged before
// its delete batch is issued. Per-object delete failures are logged and do
// not stop the remaining batches. Returns the number of deleted objects.
func (s *MediaStorage) DeletePrefix(ctx context.Context, name string) (int, error) {
	deleted := 0
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(name + "/"),
			MaxKeys:           aws.Int32(deleteBatchSize),
			ContinuationToken: token,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to list prefix %s: %w", name, err)
		}
		if len(out.Contents) == 0 {
			break
		}

		ids := make([]types.ObjectIdentifier, 0, len(out.Contents))
		for _, obj := range out.Contents {
			log.Info().Str("key", aws.ToString(obj.Key)).Msg("Deleting object")
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}

		del, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete batch under %s: %w", name, err)
		}

		for _, e := range del.Errors {
			log.Error().
				Str("key", aws.ToString(e.Key)).
				Str("code", aws.ToString(e.Code)).
				Str("message", aws.ToString(e.Message)).
				Msg("Failed to delete object")
		}
		deleted += len(ids) - len(del.Errors)

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	return deleted, nil
}

// isNotFound matches HeadObject misses. MinIO and some S3-compatible
// endpoints return a generic API error instead of *types.NotFound.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}

func contentTypeFor(rel string) string {
	if t := mime.TypeByExtension(filepath.Ext(rel)); t != "" {
		return t
	}
	return "application/octet-stream"
}
