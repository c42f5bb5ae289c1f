// Package s3compat builds aws-sdk-go-v2 S3 clients pointed at the
// account's S3-compatible endpoint. B2 application keys double as S3
// credentials: the key id is the access key, the key itself the secret.
package s3compat

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/b2kit/b2go/b2"
)

// Config carries everything needed to talk to the S3-compatible endpoint.
type Config struct {
	// Endpoint is the s3ApiUrl reported by authorization, e.g.
	// "https://s3.us-west-004.backblazeb2.com".
	Endpoint string

	// KeyID and ApplicationKey are the same credentials the native API
	// uses. Keys created before the S3 endpoint existed will be rejected.
	KeyID          string
	ApplicationKey string
}

// FromAuth derives a Config from an authorized account.
func FromAuth(auth b2.AuthData, keyID, applicationKey string) Config {
	return Config{
		Endpoint:       auth.StorageAPI().S3APIURL,
		KeyID:          keyID,
		ApplicationKey: applicationKey,
	}
}

// New builds an S3 client against the configured endpoint.
func New(ctx context.Context, cfg Config) (*s3.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3compat: endpoint is required")
	}
	region, err := RegionFromEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.ApplicationKey, ""),
		),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("s3compat: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
	})
	return client, nil
}

// RegionFromEndpoint extracts the region from an endpoint shaped like
// "https://s3.<region>.backblazeb2.com".
func RegionFromEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("s3compat: parse endpoint: %w", err)
	}
	host := u.Host
	if host == "" {
		host = endpoint
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 || parts[0] != "s3" {
		return "", fmt.Errorf("s3compat: cannot derive region from endpoint %q", endpoint)
	}
	return parts[1], nil
}
