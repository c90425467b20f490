// Package s3 stores the document as a single object in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/and161185/bairro-board/internal/model"
)

// ObjectAPI is the subset of *s3.Client the backend uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// ClientOptions configures the S3 client. Empty AccessKey falls back to the
// default AWS credential chain; non-empty Endpoint targets MinIO and friends.
type ClientOptions struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewClient builds an S3 client from opts.
func NewClient(ctx context.Context, opts ClientOptions) (*awss3.Client, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Backend reads and writes bucket/key.
type Backend struct {
	api    ObjectAPI
	bucket string
	key    string
}

// New returns a backend over api.
func New(api ObjectAPI, bucket, key string) *Backend {
	return &Backend{api: api, bucket: bucket, key: key}
}

// Load fetches and parses the object. A missing object is an empty document.
func (b *Backend) Load(ctx context.Context) (*model.Document, error) {
	out, err := b.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return model.EmptyDocument(), nil
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	doc := &model.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("parse s3://%s/%s: %w", b.bucket, b.key, err)
	}
	doc.Normalize()
	return doc, nil
}

// Save overwrites the object with the serialized document.
func (b *Backend) Save(ctx context.Context, doc *model.Document) error {
	out := doc.Clone()
	out.Normalize()
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = b.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", b.bucket, b.key, err)
	}
	return nil
}
