// Package storage archives product images to S3-compatible object
// storage so notification channels can embed them after the listing
// changes or disappears.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
)

const maxImageBytes = 5 << 20

type ImageArchive struct {
	client *s3.Client
	bucket string
	http   *http.Client
}

func NewImageArchive(ctx context.Context, bucket, endpoint, user, password string) (*ImageArchive, error) {
	creds := credentials.NewStaticCredentialsProvider(user, password, "")

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(creds),
		config.WithRegion("us-east-1"),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true, // Required for MinIO
				}, nil
			},
		)),
	)
	if err != nil {
		return nil, err
	}

	return &ImageArchive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		http:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Archive downloads the product's image and uploads it under
// product_images/. Returns the object key.
func (a *ImageArchive) Archive(ctx context.Context, p product.Product) (string, error) {
	if p.ImageURL == "" {
		return "", fmt.Errorf("product has no image URL")
	}

	data, contentType, err := a.download(ctx, p.ImageURL)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("product_images/%d_%s.jpg", time.Now().Unix(), uuid.NewString()[:8])

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Archived product image")
	return key, nil
}

func (a *ImageArchive) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", shared.RandomUserAgent())

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("URL is not an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}
