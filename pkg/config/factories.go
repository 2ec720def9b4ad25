package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/treewalk/internal/logger"
	"github.com/marmos91/treewalk/pkg/catalogue"
	catalogueBadger "github.com/marmos91/treewalk/pkg/catalogue/badger"
	catalogueFs "github.com/marmos91/treewalk/pkg/catalogue/fs"
	catalogueS3 "github.com/marmos91/treewalk/pkg/catalogue/s3"
	"github.com/marmos91/treewalk/pkg/walker"
)

// CreateCatalogue creates a catalogue backend based on configuration.
//
// The Type field selects the backend; the matching options map is decoded
// into the backend's configuration struct and passed to its constructor.
// The returned close function releases the backend's resources and may be
// nil for backends that hold none.
//
// Supported types:
//   - "filesystem": pkg/catalogue/fs (host directory, zip archives as images)
//   - "badger": pkg/catalogue/badger (persistent catalogue in BadgerDB)
//   - "s3": pkg/catalogue/s3 (bucket prefix listing)
func CreateCatalogue(ctx context.Context, cfg *CatalogueConfig) (catalogue.Reader, func() error, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemCatalogue(cfg.Filesystem)
	case "badger":
		return createBadgerCatalogue(cfg.Badger)
	case "s3":
		return createS3Catalogue(ctx, cfg.S3)
	case "memory":
		return nil, nil, fmt.Errorf("memory catalogue is only available programmatically - build one with pkg/catalogue/memory")
	default:
		return nil, nil, fmt.Errorf("unknown catalogue type: %q", cfg.Type)
	}
}

// WalkerOptions converts the walk section into walker options.
func WalkerOptions(cfg *WalkConfig) walker.Options {
	var flags walker.Flags
	if cfg.RecurseDirs {
		flags |= walker.RecurseDirs
	}
	if cfg.RecurseImages {
		flags |= walker.RecurseImages
	}
	return walker.Options{
		Pattern:           cfg.Pattern,
		Flags:             flags,
		InitialBufferSize: cfg.InitialBufferSize,
		MaxBufferSize:     cfg.MaxBufferSize,
	}
}

// createFilesystemCatalogue creates a host-directory catalogue.
func createFilesystemCatalogue(options map[string]any) (catalogue.Reader, func() error, error) {
	type FilesystemCatalogueConfig struct {
		Path      string   `mapstructure:"path"`
		ImageExts []string `mapstructure:"image_exts"`
	}

	var backendCfg FilesystemCatalogueConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode filesystem catalogue config: %w", err)
	}

	if backendCfg.Path == "" {
		return nil, nil, fmt.Errorf("filesystem catalogue: path is required")
	}

	cat, err := catalogueFs.New(backendCfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem catalogue: %w", err)
	}
	for _, ext := range backendCfg.ImageExts {
		cat.SetImageExt(ext)
	}

	logger.Info("filesystem catalogue initialized: path=%s", backendCfg.Path)
	return cat, nil, nil
}

// createBadgerCatalogue opens a persistent catalogue store.
func createBadgerCatalogue(options map[string]any) (catalogue.Reader, func() error, error) {
	type BadgerCatalogueConfig struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var backendCfg BadgerCatalogueConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode badger catalogue config: %w", err)
	}

	if backendCfg.Path == "" && !backendCfg.InMemory {
		return nil, nil, fmt.Errorf("badger catalogue: path is required unless in_memory is set")
	}

	store, err := catalogueBadger.Open(catalogueBadger.Config{
		Path:     backendCfg.Path,
		InMemory: backendCfg.InMemory,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open badger catalogue: %w", err)
	}

	logger.Info("badger catalogue opened: path=%s in_memory=%v", backendCfg.Path, backendCfg.InMemory)
	return store, store.Close, nil
}

// createS3Catalogue creates an S3-backed catalogue.
func createS3Catalogue(ctx context.Context, options map[string]any) (catalogue.Reader, func() error, error) {
	type S3CatalogueConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var backendCfg S3CatalogueConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode S3 catalogue config: %w", err)
	}

	if backendCfg.Bucket == "" {
		return nil, nil, fmt.Errorf("S3 catalogue: bucket is required")
	}
	if backendCfg.Region == "" {
		return nil, nil, fmt.Errorf("S3 catalogue: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(backendCfg.Region))

	// Custom endpoint for S3-compatible storage (MinIO, Localstack, etc.)
	if backendCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               backendCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain.
	if backendCfg.AccessKeyID != "" && backendCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			backendCfg.AccessKeyID,
			backendCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Retry transient listing failures; directory walks issue many small
	// list calls and a single 503 should not abort one.
	maxRetries := backendCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if backendCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Catalogue
	// ========================================================================

	cat, err := catalogueS3.New(ctx, catalogueS3.Config{
		Client:    client,
		Bucket:    backendCfg.Bucket,
		KeyPrefix: backendCfg.KeyPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create S3 catalogue: %w", err)
	}

	logger.Info("S3 catalogue initialized: bucket=%s, region=%s, prefix=%s",
		backendCfg.Bucket, backendCfg.Region, backendCfg.KeyPrefix)

	return cat, nil, nil
}
