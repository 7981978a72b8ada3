package locator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"modpack/internal/shared/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes a bucket that mirrors the ansible_collections tree.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// RateLimit caps object reads per second; zero disables the cap.
	RateLimit float64
	Burst     int
}

// S3Index serves collection resources from an S3 compatible object store.
// Keys are <prefix>/<ns>/<coll>/<resource>.
type S3Index struct {
	client  *minio.Client
	bucket  string
	prefix  string
	limiter *util.Limiter
}

func NewS3Index(cfg S3Config) (*S3Index, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	var creds *credentials.Credentials
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		creds = credentials.NewStaticV4(access, secret, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Index{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		limiter: util.NewLimiter(cfg.RateLimit, cfg.Burst),
	}, nil
}

func (x *S3Index) Get(ctx context.Context, distribution, resource string) ([]byte, error) {
	key, err := x.objectKey(distribution, resource)
	if err != nil {
		return nil, err
	}
	if err := x.limiter.Wait(ctx, 1); err != nil {
		return nil, err
	}

	obj, err := x.client.GetObject(ctx, x.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return data, nil
}

func (x *S3Index) objectKey(distribution, resource string) (string, error) {
	ns, coll, err := splitDistribution(distribution)
	if err != nil {
		return "", err
	}
	rel, err := cleanResource(resource)
	if err != nil {
		return "", err
	}
	key := ns + "/" + coll + "/" + rel
	if x.prefix != "" {
		key = x.prefix + "/" + key
	}
	return key, nil
}

func notFoundOr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrResourceNotFound
	}
	return err
}
