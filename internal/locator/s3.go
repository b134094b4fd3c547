package locator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pocketllm/mediabox/internal/config"
)

// s3Provider resolves s3://bucket/key media references.
type s3Provider struct {
	client *s3.Client
}

// newS3Provider creates the S3 client for provider-URI resolution.
func newS3Provider(cfg *config.S3Config) *s3Provider {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: ptrOrNil(cfg.Endpoint),
		UsePathStyle: cfg.ForcePathStyle,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})

	slog.Info("S3 media provider enabled",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint)

	return &s3Provider{client: client}
}

// ptrOrNil returns nil for empty strings, otherwise a pointer to the string.
func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// Fetch streams the object at s3://host/path into w.
func (p *s3Provider) Fetch(ctx context.Context, uri *url.URL, w io.Writer) (err error) {
	bucket := uri.Host
	key := strings.TrimPrefix(uri.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("s3 reference must be s3://bucket/key")
	}

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 get object: %w", err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("s3 get object: close body: %w", closeErr)
		}
	}()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("s3 read object: %w", err)
	}

	return nil
}
