package config

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"google.golang.org/api/option"

	"github.com/scality/cloudserver/internal/backend"
	"github.com/scality/cloudserver/internal/location"
)

// BuildRegistry instantiates one backend.Client per entry of
// c.LocationConstraints and returns a populated Location Registry (spec
// §4.2 "At process start... instantiates one Backend Client per entry").
func BuildRegistry(c *Config) (*location.Registry, error) {
	reg := location.New()

	if c.Backends.Data == DataBackendFile && c.FileBackendRoot != "" {
		fc, err := backend.NewFileClient(c.FileBackendRoot)
		if err != nil {
			return nil, err
		}
		reg.Register(location.Constraint{Name: "file", Type: backend.TypeFile}, fc)
	}

	for name, lc := range c.LocationConstraints {
		client, err := buildClient(name, lc)
		if err != nil {
			return nil, fmt.Errorf("config: building backend for location %q: %w", name, err)
		}
		reg.Register(location.Constraint{
			Name:        name,
			Type:        lc.Type,
			BucketName:  lc.Details.BucketName,
			BucketMatch: lc.Details.BucketMatch,
		}, client)
	}
	return reg, nil
}

func buildClient(name string, lc LocationConstraint) (backend.Client, error) {
	switch lc.Type {
	case backend.TypeMem:
		return backend.NewMemClient(), nil
	case backend.TypeScality:
		creds := miniocreds.NewStaticV4(lc.Details.AccessKey, lc.Details.SecretKey, "")
		cl, err := miniogo.New(lc.Details.Endpoint, &miniogo.Options{Creds: creds, Secure: lc.Details.Secure})
		if err != nil {
			return nil, err
		}
		core := &miniogo.Core{Client: cl}
		return backend.NewScalityClient(core, lc.Details.BucketName, lc.Details.BucketMatch, name), nil
	case backend.TypeAWS:
		return backend.NewAWSClient(lc.Details.Endpoint, lc.Details.AccessKey, lc.Details.SecretKey,
			lc.Details.BucketName, lc.Details.BucketMatch, name, lc.Details.Secure)
	case backend.TypeAzure:
		return backend.NewAzureClient(lc.Details.AzureStorageAccountName, lc.Details.AzureStorageAccessKey,
			lc.Details.AzureContainerName, name, lc.Details.BucketMatch)
	case backend.TypeGCP:
		gcsClient, err := newGCPStorageClient(lc.Details.GCPServiceKeyPath)
		if err != nil {
			return nil, err
		}
		return backend.NewGCPClient(gcsClient, lc.Details.GCPBucketName, lc.Details.BucketMatch, name), nil
	default:
		return nil, fmt.Errorf("unsupported location type %q", lc.Type)
	}
}

// newGCPStorageClient authenticates with the service account key on disk
// at serviceKeyPath, or falls back to application-default credentials
// when none is configured (spec §6 "gcpServiceKeyPath is optional").
func newGCPStorageClient(serviceKeyPath string) (*storage.Client, error) {
	ctx := context.Background()
	if serviceKeyPath == "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithCredentialsFile(serviceKeyPath))
}
