// Package archive keeps the photos of committed meals in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chuikova-e/nutritioner-bot/internal/model"
)

// PutObjectAPI is the slice of *s3.Client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archive struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*S3Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: loading aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func NewWithClient(client PutObjectAPI, bucket, prefix string, logger *slog.Logger) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Archive uploads photos as <prefix>/<handle>/<date>/<record id>-<n>.<ext>,
// n counting from 1. It stops at the first failed upload.
func (a *S3Archive) Archive(ctx context.Context, rec *model.DailyRecord, photos [][]byte) error {
	for i, photo := range photos {
		contentType := http.DetectContentType(photo)
		key := a.key(rec, i+1, extension(contentType))

		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(photo),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("archive: uploading %s: %w", key, err)
		}
	}

	a.logger.Info("meal photos archived",
		slog.String("record_id", rec.ID),
		slog.Int("photos", len(photos)),
	)
	return nil
}

func (a *S3Archive) key(rec *model.DailyRecord, n int, ext string) string {
	name := fmt.Sprintf("%s-%d%s", rec.ID, n, ext)
	return path.Join(a.prefix, rec.Handle, rec.Date, name)
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
