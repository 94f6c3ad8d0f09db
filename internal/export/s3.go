package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/michael-freling/ml-artifact-store/internal/config"
)

// S3Client is the part of the S3 API used by S3Sink. *s3.Client satisfies it
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

var _ S3Client = (*s3.Client)(nil)

// NewS3Client creates a client for S3 or an S3 compatible object store like MinIO.
// Static credentials are used if they are configured, otherwise the default credential chain is used.
func NewS3Client(ctx context.Context, conf config.S3Config) (*s3.Client, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
	}
	if conf.AccessKeyID != "" {
		options = append(options, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			conf.AccessKeyID,
			conf.SecretAccessKey,
			"",
		)))
	}
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("config.LoadDefaultConfig: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Sink uploads files as objects under a prefix of a bucket
type S3Sink struct {
	client S3Client
	bucket string
	prefix string
}

func NewS3Sink(client S3Client, bucket string, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (sink *S3Sink) key(name string) string {
	if sink.prefix == "" {
		return name
	}
	return path.Join(sink.prefix, name)
}

func (sink *S3Sink) String() string {
	return "s3://" + path.Join(sink.bucket, sink.prefix)
}

func (sink *S3Sink) Exists(ctx context.Context, name string) (bool, error) {
	_, err := sink.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(sink.bucket),
		Key:    aws.String(sink.key(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("client.HeadObject: %w", err)
	}
	return true, nil
}

func (sink *S3Sink) Write(ctx context.Context, name string, content []byte, contentType string) error {
	_, err := sink.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sink.bucket),
		Key:           aws.String(sink.key(name)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("client.PutObject: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
