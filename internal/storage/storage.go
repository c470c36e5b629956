// Package storage persists uploaded payment proof images.  It writes
// to AWS S3 when credentials are configured and falls back to local
// disk otherwise, which keeps development setups free of cloud
// dependencies.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

// Store saves proof images and returns publicly reachable URLs.
type Store struct {
	useS3     bool
	bucket    string
	region    string
	client    *s3.S3
	uploader  *s3manager.Uploader
	baseURL   string
	uploadDir string
	log       *logrus.Logger
}

// New initialises S3 when AWS_REGION, AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY are all set, and local-disk storage
// otherwise.
func New(log *logrus.Logger) (*Store, error) {
	region := os.Getenv("AWS_REGION")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")

	if region != "" && accessKey != "" && secretKey != "" {
		bucket := os.Getenv("AWS_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("AWS_S3_BUCKET must be set when S3 credentials are configured")
		}
		sess, err := session.NewSession(&aws.Config{
			Region:      aws.String(region),
			Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
		})
		if err != nil {
			return nil, fmt.Errorf("create AWS session: %w", err)
		}
		log.WithField("bucket", bucket).Info("proof storage: using S3")
		return &Store{
			useS3:    true,
			bucket:   bucket,
			region:   region,
			client:   s3.New(sess),
			uploader: s3manager.NewUploader(sess),
			log:      log,
		}, nil
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	log.WithField("dir", uploadDir).Warn("proof storage: S3 not configured, using local disk")
	return &Store{
		useS3:     false,
		baseURL:   baseURL,
		uploadDir: uploadDir,
		log:       log,
	}, nil
}

// Save stores data under key and returns the URL where it can be
// fetched.
func (s *Store) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.useS3 {
		_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", fmt.Errorf("upload to S3: %w", err)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
	}

	path := filepath.Join(s.uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, key), nil
}

// Delete removes a previously stored object.  The URL must be one
// returned by Save.
func (s *Store) Delete(ctx context.Context, url string) error {
	if s.useS3 {
		prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.bucket, s.region)
		key := strings.TrimPrefix(url, prefix)
		_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	}
	key := strings.TrimPrefix(url, s.baseURL+"/uploads/")
	return os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(key)))
}
