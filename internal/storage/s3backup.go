package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/deskflow-rpa/deskflow/internal/platform/resilience"
)

// S3BackupConfig configures the optional off-machine replica of recording
// blobs (spec.md's supplemented cloud-backup feature).
type S3BackupConfig struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // non-empty for S3-compatible services
}

// S3Backup mirrors blob writes to an S3 bucket behind a circuit breaker, so
// a flaky or unreachable bucket degrades the backup path without blocking
// local capture/replay (spec.md §7: local storage must never depend on
// network availability).
type S3Backup struct {
	client  *s3.Client
	bucket  string
	prefix  string
	breaker *resilience.CircuitBreaker
}

// NewS3Backup builds an S3Backup from static credentials, grounded on the
// teacher's S3 node client construction.
func NewS3Backup(ctx context.Context, cfg S3BackupConfig) (*S3Backup, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: loading aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Backup{
		client:  s3.NewFromConfig(awsCfg, opts...),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("s3-backup")),
	}, nil
}

func (b *S3Backup) key(hash string) string {
	if b.prefix == "" {
		return hash + ".blob"
	}
	return b.prefix + "/" + hash + ".blob"
}

func (b *S3Backup) Put(ctx context.Context, hash string, blob []byte) error {
	return b.breaker.Execute(func() error {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(hash)),
			Body:   bytes.NewReader(blob),
		})
		return err
	})
}

func (b *S3Backup) Get(ctx context.Context, hash string) ([]byte, error) {
	var body []byte
	err := b.breaker.Execute(func() error {
		out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(hash)),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		return err
	})
	return body, err
}

func (b *S3Backup) Delete(ctx context.Context, hash string) error {
	return b.breaker.Execute(func() error {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(hash)),
		})
		return err
	})
}

func (b *S3Backup) Exists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := b.breaker.Execute(func() error {
		_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(hash)),
		})
		exists = err == nil
		return err
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MirroringStore writes through to a primary BlobStore synchronously and
// fires the backup write in the background, logging failures rather than
// failing the caller — a backup outage must never block local recording.
type MirroringStore struct {
	Primary BlobStore
	Backup  BlobStore
	OnError func(hash string, err error)
}

func (m *MirroringStore) Put(ctx context.Context, hash string, blob []byte) error {
	if err := m.Primary.Put(ctx, hash, blob); err != nil {
		return err
	}
	if m.Backup != nil {
		go func() {
			backupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := m.Backup.Put(backupCtx, hash, blob); err != nil && m.OnError != nil {
				m.OnError(hash, err)
			}
		}()
	}
	return nil
}

func (m *MirroringStore) Get(ctx context.Context, hash string) ([]byte, error) {
	return m.Primary.Get(ctx, hash)
}

func (m *MirroringStore) Delete(ctx context.Context, hash string) error {
	return m.Primary.Delete(ctx, hash)
}

func (m *MirroringStore) Exists(ctx context.Context, hash string) (bool, error) {
	return m.Primary.Exists(ctx, hash)
}
