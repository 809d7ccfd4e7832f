package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the slice of the S3 client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config locates the archive bucket. Credentials come from the default
// AWS chain (env, shared config, instance role).
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // S3-compatible stores such as MinIO; forces path-style
}

// S3Sink archives each analysis as one JSON object keyed
// <prefix>/YYYY/MM/DD/<id>.json.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 sink: empty bucket")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Sink(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Sink(client objectPutter, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Sink) Name() string { return "s3:" + s.bucket }

func (s *S3Sink) objectKey(rec *Record) string {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return path.Join(s.prefix, ts.UTC().Format("2006/01/02"), rec.ID+".json")
}

func (s *S3Sink) Deliver(ctx context.Context, rec *Record) error {
	if rec == nil {
		return nil
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("s3 sink: encode %s: %w", rec.ID, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(rec)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"final-label": rec.FinalLabel,
			"client":      rec.Client,
		},
	})
	if err != nil {
		return fmt.Errorf("s3 sink: put %s: %w", rec.ID, err)
	}
	return nil
}

func (s *S3Sink) Close(context.Context) error { return nil }
