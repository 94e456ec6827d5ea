package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LogSource fetches a finished build's console output so it can be embedded
// in a result document.
type LogSource interface {
	// Retrieve returns the log content behind reference.
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}

// S3LogSource reads logs that a build archived to S3-compatible storage.
type S3LogSource struct {
	client *s3.Client
}

// S3Config holds S3 configuration
type S3Config struct {
	Region          string
	Endpoint        string // For MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3LogSource creates an S3-backed log source.
func NewS3LogSource(ctx context.Context, cfg S3Config) (*S3LogSource, error) {
	var optFns []func(*config.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	return &S3LogSource{client: s3.NewFromConfig(awsCfg, clientOpts...)}, nil
}

// Retrieve fetches s3://bucket/key.
func (s *S3LogSource) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	bucket, key, ok := ParseS3Reference(reference)
	if !ok {
		return nil, fmt.Errorf("not an s3 reference: %q", reference)
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get log from S3: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return data, nil
}

// ParseS3Reference splits s3://bucket/key. Both parts must be non-empty.
func ParseS3Reference(reference string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(reference, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// FileLogSource reads logs from the local filesystem, or stdin for "-".
type FileLogSource struct {
	Stdin io.Reader
}

// Retrieve reads the file at reference.
func (f FileLogSource) Retrieve(_ context.Context, reference string) ([]byte, error) {
	if reference == "-" {
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read log from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(reference)
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return data, nil
}

// Router sends s3:// references to S3 and everything else to Files. S3 is
// built lazily on first use.
type Router struct {
	Files FileLogSource
	S3    func(ctx context.Context) (LogSource, error)

	s3 LogSource
}

// Retrieve dispatches on the reference scheme.
func (r *Router) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	if !strings.HasPrefix(reference, "s3://") {
		return r.Files.Retrieve(ctx, reference)
	}

	if r.s3 == nil {
		if r.S3 == nil {
			return nil, fmt.Errorf("no S3 source configured for %q", reference)
		}
		src, err := r.S3(ctx)
		if err != nil {
			return nil, err
		}
		r.s3 = src
	}
	return r.s3.Retrieve(ctx, reference)
}
