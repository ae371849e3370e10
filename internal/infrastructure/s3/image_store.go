// Package s3 stores product images in an S3 bucket fronted by a public base
// URL (the bucket itself or a CDN distribution).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageStore implements the api.ImageRepository contract on S3.
type ImageStore struct {
	client        *awss3.Client
	bucket        string
	publicBaseURL string
}

func NewImageStore(client *awss3.Client, bucket, publicBaseURL string) *ImageStore {
	return &ImageStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// Upload puts the object and returns its public URL. Keys are chosen by the
// caller; uploads to the same key overwrite.
func (s *ImageStore) Upload(ctx context.Context, data []byte, contentType, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put s3 object %s/%s: %w", s.bucket, key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}
