package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Mirror copies stored uploads to Amazon S3 (or compatible APIs).
type S3Mirror struct {
	uploader  *manager.Uploader
	bucket    string
	keyPrefix string
}

func NewS3Mirror(client *s3.Client, bucket, keyPrefix string) (*S3Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	return &S3Mirror{
		uploader:  manager.NewUploader(client),
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}, nil
}

// Key returns the object key name is mirrored under.
func (m *S3Mirror) Key(name string) string {
	if m.keyPrefix == "" {
		return name
	}
	return m.keyPrefix + "/" + name
}

func (m *S3Mirror) Mirror(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || Sanitize(name) != name {
		return "", &Error{Op: "mirror", Name: name, Code: CodeInvalidName}
	}

	key := m.Key(name)
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   r,
		ACL:    types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", &Error{Op: "mirror", Name: name, Code: CodeIO, Err: fmt.Errorf("upload %s: %w", key, err)}
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, key), nil
}
