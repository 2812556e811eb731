package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"chaletbook/internal/app/services/snapshots"
)

type Config struct {
	Endpoint      string
	UseSSL        bool
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// Client writes public documents to an S3-compatible bucket.
type Client struct {
	bucket        string
	publicBaseURL string
	client        *minio.Client
	logger        *slog.Logger

	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	mc, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	base := strings.TrimSpace(cfg.PublicBaseURL)
	if base == "" {
		base = endpoint
	}
	return &Client{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        mc,
		logger:        logger,
	}, nil
}

// PutJSON uploads v as a JSON object with a short public cache lifetime and
// returns its public URL.
func (c *Client) PutJSON(ctx context.Context, key string, v any) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("s3: encode %s: %w", key, err)
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err = c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  "application/json",
		CacheControl: "public, max-age=60",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	publicURL := c.ObjectURL(key)
	if c.logger != nil {
		c.logger.Debug("s3 upload completed", "bucket", c.bucket, "key", key, "bytes", len(body))
	}
	return publicURL, nil
}

// Ping reports whether the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketInitOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			c.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		c.bucketInitErr = c.client.SetBucketPolicy(ctx, c.bucket, PublicReadPolicy(c.bucket))
	})
	return c.bucketInitErr
}

// PublicReadPolicy grants anonymous GetObject on every key of bucket.
func PublicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func (c *Client) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, strings.TrimLeft(key, "/"))
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ snapshots.ObjectStore = (*Client)(nil)
