// Package storage ships local artifacts (backups, exports) to S3.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog"
)

// S3 uploads files under an optional key prefix.
type S3 struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
	logger   zerolog.Logger
}

// NewS3 builds an uploader from the default AWS credential chain
// (environment, shared config, instance role).
func NewS3(bucket, region, prefix string, logger zerolog.Logger) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3WithUploader(s3manager.NewUploader(sess), bucket, prefix, logger), nil
}

func NewS3WithUploader(uploader s3manageriface.UploaderAPI, bucket, prefix string, logger zerolog.Logger) *S3 {
	return &S3{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger.With().Str("component", "s3").Logger(),
	}
}

// UploadFile copies localPath to bucket/prefix/key.
func (s *S3) UploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	fullKey := path.Join(s.prefix, key)
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", fullKey, err)
	}

	s.logger.Info().Str("key", fullKey).Str("location", out.Location).Msg("file uploaded")
	return nil
}
