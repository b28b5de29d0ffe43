package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	bucket, key string
	expires     time.Duration
	err         error
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.bucket, f.key, f.expires = *params.Bucket, *params.Key, opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + f.bucket + ".s3.amazonaws.com/" + f.key + "?X-Amz-Signature=abc",
		Method: "GET",
	}, nil
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref         string
		bucket, key string
		isS3        bool
		wantErr     bool
	}{
		{ref: "s3://farm-images/products/p-1.jpg", bucket: "farm-images", key: "products/p-1.jpg", isS3: true},
		{ref: "https://cdn.example.com/a.jpg"},
		{ref: ""},
		{ref: "s3://farm-images", isS3: true, wantErr: true},
		{ref: "s3:///key", isS3: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			bucket, key, isS3, err := ParseReference(tt.ref)
			assert.Equal(t, tt.isS3, isS3)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestResolve_PresignsS3References(t *testing.T) {
	fake := &fakePresigner{}
	p := newPresigner(fake, time.Hour, nil)

	url, err := p.Resolve(context.Background(), "s3://farm-images/products/p-1.jpg")
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
	assert.Equal(t, "farm-images", fake.bucket)
	assert.Equal(t, "products/p-1.jpg", fake.key)
	assert.Equal(t, time.Hour, fake.expires)
}

func TestResolve_PassesThroughOtherReferences(t *testing.T) {
	fake := &fakePresigner{}
	p := newPresigner(fake, 0, nil)
	assert.Equal(t, DefaultPresignTTL, p.ttl)

	url, err := p.Resolve(context.Background(), "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", url)
	assert.Empty(t, fake.bucket)
}

func TestResolveFunc_FallsBackOnError(t *testing.T) {
	p := newPresigner(&fakePresigner{err: errors.New("no credentials")}, 0, nil)
	resolve := p.ResolveFunc(context.Background())

	assert.Equal(t, "s3://farm-images/a.jpg", resolve("s3://farm-images/a.jpg"))
	assert.Equal(t, "s3://broken", resolve("s3://broken"))
}
