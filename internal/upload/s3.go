package upload

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the part of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores documents in a bucket and returns URLs under publicBaseURL.
type S3Uploader struct {
	client        S3API
	bucket        string
	publicBaseURL string
}

func NewS3Uploader(client S3API, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (u *S3Uploader) Upload(ctx context.Context, f File) (string, error) {
	const op = "S3Uploader.Upload"
	if err := Validate(f); err != nil {
		return "", err
	}
	key := objectKey("prescriptions", f)
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f.Body,
		ContentType:   aws.String(normalizeType(f.ContentType)),
		ContentLength: aws.Int64(f.Size),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return u.publicBaseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}
