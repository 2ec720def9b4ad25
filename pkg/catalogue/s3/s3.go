// Package s3 implements a read-only catalogue backend over an S3 bucket.
//
// S3 has no real directories, so the namespace is synthesized from the key
// structure: a delimiter listing under a key prefix yields the files of
// that level, and the common prefixes become directories. The namespace is
// rooted at "$" like the filesystem backend.
//
// Archives stored in the bucket are delivered as plain files; walking into
// an image would require downloading the object, which this backend does
// not do.
package s3

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

// RootName is the leaf name of the namespace root.
const RootName = "$"

// listAPI is the slice of the S3 client the catalogue uses. Tests
// substitute a fake; production passes *s3.Client.
type listAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Catalogue is a catalogue backend over one bucket prefix.
//
// Each Read lists the addressed level afresh (following continuation
// tokens until the level is complete), so cursors stay valid as long as
// the bucket contents under the level do not change between reads. It is
// safe for concurrent use.
type Catalogue struct {
	client    listAPI
	bucket    string
	keyPrefix string
	fileTypes map[string]int

	// ctx bounds the S3 calls issued by Read, which carries no context of
	// its own in the Reader contract.
	ctx context.Context
}

// Config holds the options for creating an S3 catalogue.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name.
	Bucket string

	// KeyPrefix is the key prefix the namespace root maps to. With prefix
	// "archive/" the catalogue path "$/docs" lists keys under
	// "archive/docs/".
	KeyPrefix string
}

// New creates an S3 catalogue and verifies bucket access. The bucket must
// already exist.
func New(ctx context.Context, cfg Config) (*Catalogue, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	c := newWithAPI(ctx, cfg.Client, cfg.Bucket, cfg.KeyPrefix)
	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}
	return c, nil
}

func newWithAPI(ctx context.Context, client listAPI, bucket, keyPrefix string) *Catalogue {
	if ctx == nil {
		ctx = context.Background()
	}
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}
	return &Catalogue{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		fileTypes: map[string]int{
			".txt":  catalogue.FileTypeText,
			".text": catalogue.FileTypeText,
			".obey": catalogue.FileTypeObey,
			".spr":  catalogue.FileTypeSprite,
		},
		ctx: ctx,
	}
}

// SetFileType registers the catalogue file type reported for objects with
// the given key extension. Unregistered extensions report FileTypeData.
func (c *Catalogue) SetFileType(ext string, fileType int) {
	c.fileTypes[strings.ToLower(ext)] = fileType
}

// Read implements catalogue.Reader.
func (c *Catalogue) Read(path, filter string, buf []byte, cursor uint32) (int, uint32, error) {
	entries, err := c.list(path)
	if err != nil {
		return 0, cursor, err
	}
	return catalogue.PackEntries(entries, filter, buf, cursor, path)
}

// keyPrefixFor maps a catalogue directory path onto the bucket key prefix
// of its level.
func (c *Catalogue) keyPrefixFor(path string) (string, error) {
	trimmed := strings.Trim(path, string(catalogue.Separator))
	if trimmed == "" {
		return "", &catalogue.Error{
			Code:    catalogue.ErrInvalidArgument,
			Message: "empty path",
		}
	}
	parts := strings.Split(trimmed, string(catalogue.Separator))
	if parts[0] != RootName {
		return "", &catalogue.Error{
			Code:    catalogue.ErrNotFound,
			Message: "path is not rooted at " + RootName,
			Path:    path,
		}
	}
	for _, p := range parts[1:] {
		if p == "" || p == "." || p == ".." {
			return "", &catalogue.Error{
				Code:    catalogue.ErrInvalidArgument,
				Message: "path has invalid component",
				Path:    path,
			}
		}
	}
	prefix := c.keyPrefix
	if len(parts) > 1 {
		prefix += strings.Join(parts[1:], "/") + "/"
	}
	return prefix, nil
}

// list materializes one ordered directory level from the bucket, following
// continuation tokens until the level is complete.
func (c *Catalogue) list(path string) ([]catalogue.Entry, error) {
	prefix, err := c.keyPrefixFor(path)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]catalogue.Entry)
	sawAnything := false

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	for {
		out, err := c.client.ListObjectsV2(c.ctx, input)
		if err != nil {
			return nil, &catalogue.Error{
				Code:    catalogue.ErrIO,
				Message: "bucket listing failed: " + err.Error(),
				Path:    path,
			}
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(aws.ToString(cp.Prefix)[len(prefix):], "/")
			if name == "" {
				continue
			}
			sawAnything = true
			load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
			byName[name] = catalogue.Entry{
				Load: load,
				Exec: exec,
				Attr: 0x03,
				Type: catalogue.ObjectDirectory,
				Name: name,
			}
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := key[len(prefix):]
			sawAnything = true
			if name == "" {
				// The level's own directory marker object.
				continue
			}
			if strings.HasSuffix(name, "/") {
				// An explicit marker for a child directory; the common
				// prefix for it may or may not also be reported.
				name = strings.TrimSuffix(name, "/")
				if _, ok := byName[name]; !ok {
					load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, objTime(obj.LastModified))
					byName[name] = catalogue.Entry{
						Load: load,
						Exec: exec,
						Attr: 0x03,
						Type: catalogue.ObjectDirectory,
						Name: name,
					}
				}
				continue
			}

			load, exec := catalogue.EncodeLoadExec(c.typeFor(name), objTime(obj.LastModified))
			byName[name] = catalogue.Entry{
				Load:   load,
				Exec:   exec,
				Length: clampLength(aws.ToInt64(obj.Size)),
				Attr:   0x03,
				Type:   catalogue.ObjectFile,
				Name:   name,
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	// An empty level below the root is indistinguishable from a missing
	// one unless a marker object exists; without either, report NotFound.
	if !sawAnything && prefix != c.keyPrefix {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrNotFound,
			Message: "object not found",
			Path:    path,
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]catalogue.Entry, len(names))
	for i, name := range names {
		entries[i] = byName[name]
	}
	return entries, nil
}

func (c *Catalogue) typeFor(name string) int {
	if t, ok := c.fileTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return catalogue.FileTypeData
}

func objTime(t *time.Time) time.Time {
	if t == nil {
		return time.Unix(0, 0).UTC()
	}
	return *t
}

func clampLength(size int64) uint32 {
	if size < 0 {
		return 0
	}
	if size > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(size)
}
