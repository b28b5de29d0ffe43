package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	s3Scheme          = "s3://"
	DefaultPresignTTL = 15 * time.Minute
)

var ErrInvalidReference = errors.New("invalid s3 reference")

// S3Config selects the bucket region and, for S3-compatible stores, the endpoint
type S3Config struct {
	Region     string        `json:"region"`
	Endpoint   string        `json:"endpoint,omitempty"`
	PathStyle  bool          `json:"path_style"`
	PresignTTL time.Duration `json:"presign_ttl"`
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Presigner turns s3://bucket/key image references into time-limited HTTPS URLs.
// Any other reference is returned unchanged.
type Presigner struct {
	client objectPresigner
	ttl    time.Duration
	logger *zap.Logger
}

// NewS3Presigner loads AWS credentials from the default chain
func NewS3Presigner(ctx context.Context, cfg S3Config, logger *zap.Logger) (*Presigner, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newPresigner(s3.NewPresignClient(client), cfg.PresignTTL, logger), nil
}

func newPresigner(client objectPresigner, ttl time.Duration, logger *zap.Logger) *Presigner {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presigner{client: client, ttl: ttl, logger: logger}
}

// ParseReference splits an s3://bucket/key reference. ok is false for
// anything that is not an s3 reference.
func ParseReference(ref string) (bucket, key string, ok bool, err error) {
	if !strings.HasPrefix(ref, s3Scheme) {
		return "", "", false, nil
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(ref, s3Scheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", true, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return bucket, key, true, nil
}

// Resolve returns a URL a browser can load for ref
func (p *Presigner) Resolve(ctx context.Context, ref string) (string, error) {
	bucket, key, isS3, err := ParseReference(ref)
	if !isS3 || err != nil {
		return ref, err
	}
	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", ref, err)
	}
	return req.URL, nil
}

// ResolveFunc adapts Resolve for callers that cannot handle errors. A
// reference that fails to resolve is returned as-is and logged.
func (p *Presigner) ResolveFunc(ctx context.Context) func(string) string {
	return func(ref string) string {
		url, err := p.Resolve(ctx, ref)
		if err != nil {
			p.logger.Warn("Failed to resolve image reference", zap.String("ref", ref), zap.Error(err))
			return ref
		}
		return url
	}
}
