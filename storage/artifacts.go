package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func artifactName(name, contentType string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if filepath.Ext(name) == "" && contentType == "image/png" {
		name += ".png"
	}
	return name
}

// DirBlobSink writes artifacts as files under a directory.
type DirBlobSink struct {
	dir string
}

func NewDirBlobSink(dir string) (*DirBlobSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("artifacts: create dir: %w", err)
	}
	return &DirBlobSink{dir: dir}, nil
}

func (d *DirBlobSink) Put(_ context.Context, name string, data []byte, contentType string) error {
	p := filepath.Join(d.dir, artifactName(name, contentType))
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", p, err)
	}
	return nil
}

// s3PutAPI is the subset of the S3 client the sink needs.
type s3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3BlobSink uploads artifacts to an S3 bucket under a per-run prefix.
type S3BlobSink struct {
	client s3PutAPI
	bucket string
	prefix string
}

// NewS3BlobSink builds a sink from the default AWS credential chain.
func NewS3BlobSink(ctx context.Context, bucket, prefix string) (*S3BlobSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifacts: load aws config: %w", err)
	}
	return newS3BlobSink(s3.NewFromConfig(cfg), bucket, prefix, time.Now()), nil
}

func newS3BlobSink(client s3PutAPI, bucket, prefix string, now time.Time) *S3BlobSink {
	run := now.UTC().Format("20060102T150405Z")
	return &S3BlobSink{
		client: client,
		bucket: bucket,
		prefix: path.Join(strings.Trim(prefix, "/"), run),
	}
}

func (s *S3BlobSink) Put(ctx context.Context, name string, data []byte, contentType string) error {
	key := path.Join(s.prefix, artifactName(name, contentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifacts: put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// NopBlobSink drops every artifact.
type NopBlobSink struct{}

func (NopBlobSink) Put(context.Context, string, []byte, string) error { return nil }
