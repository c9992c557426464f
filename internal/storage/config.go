package storage

import "fmt"

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// Region must be set so presigning does not look up the bucket location.
	Region string
}

func (c *MinIOConfig) validate() error {
	if c == nil || c.Endpoint == "" {
		return fmt.Errorf("minio config missing")
	}
	if c.Bucket == "" {
		return fmt.Errorf("minio bucket missing")
	}
	return nil
}

// S3Config holds the settings of an S3-compatible endpoint.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string // empty means AWS
	AccessKey string
	SecretKey string
	PathStyle bool
}

func (c *S3Config) validate() error {
	if c == nil || c.Bucket == "" {
		return fmt.Errorf("s3 bucket missing")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region missing")
	}
	return nil
}
