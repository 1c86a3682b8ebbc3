package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/uniedit/videogen/internal/domain/video"
	"github.com/uniedit/videogen/internal/shared/config"
)

// ObjectPutter is the subset of the S3 API used for archiving.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient creates an S3 client for an S3-compatible endpoint such as R2.
func NewClient(ctx context.Context, cfg *config.StorageConfig) (*s3.Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, errors.New("incomplete storage configuration")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")

	// R2 uses "auto" but the SDK needs a region
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ArtifactStore archives materialized artifacts in a bucket.
type ArtifactStore struct {
	client    ObjectPutter
	bucket    string
	prefix    string
	publicURL string
}

// NewArtifactStore creates an artifact store. When publicURL is set the
// returned locations are public links, otherwise s3:// URIs.
func NewArtifactStore(client ObjectPutter, bucket, prefix, publicURL string) *ArtifactStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ArtifactStore{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Archive uploads the artifact and returns its location.
func (s *ArtifactStore) Archive(ctx context.Context, name string, artifact *video.EncodedArtifact) (string, error) {
	if artifact == nil || len(artifact.Bytes) == 0 {
		return "", errors.New("nothing to archive")
	}

	key := s.prefix + path.Base(name) + extension(artifact.MimeType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(artifact.Bytes),
		ContentLength: aws.Int64(int64(len(artifact.Bytes))),
		ContentType:   aws.String(artifact.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func extension(mime string) string {
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".mp4"
}

var _ video.Archiver = (*ArtifactStore)(nil)
