// Package minio is an external-scope Provider on MinIO or any S3-compatible
// object store reachable through minio-go.
package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

const metaExpires = "Rendercache-Expires" // unix nano; minio canonicalizes user metadata keys

type Config struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

type Provider struct {
	client *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.Clearer       = (*Provider)(nil)
	_ pr.PrefixClearer = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, errors.New("minio provider: nil client")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio provider: bucket is required")
	}
	return &Provider{client: cfg.Client, bucket: cfg.Bucket, prefix: cfg.Prefix, now: time.Now}, nil
}

func (p *Provider) key(k string) string {
	return path.Join(p.prefix, k)
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, p.key(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Close()

	// GetObject is lazy; Stat performs the request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if v := info.UserMetadata[metaExpires]; v != "" {
		if exp, err := strconv.ParseInt(v, 10, 64); err == nil && p.now().UnixNano() > exp {
			_ = p.Del(ctx, key)
			return nil, false, nil
		}
	}
	b, err := io.ReadAll(obj)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	if ttl > 0 {
		opts.UserMetadata = map[string]string{
			metaExpires: strconv.FormatInt(p.now().Add(ttl).UnixNano(), 10),
		}
	}
	_, err := p.client.PutObject(ctx, p.bucket, p.key(key), bytes.NewReader(value), int64(len(value)), opts)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	err := p.client.RemoveObject(ctx, p.bucket, p.key(key), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Clear removes every cache-owned object ("render:" keys) under Prefix.
func (p *Provider) Clear(ctx context.Context) error {
	return p.ClearPrefix(ctx, "render:")
}

// ClearPrefix removes every object whose cache key starts with prefix.
func (p *Provider) ClearPrefix(ctx context.Context, prefix string) error {
	objects := p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    p.key(prefix),
		Recursive: true,
	})

	toRemove := make(chan minio.ObjectInfo)
	var listErr error
	go func() {
		defer close(toRemove)
		for obj := range objects {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			select {
			case toRemove <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()

	var firstErr error
	for rerr := range p.client.RemoveObjects(ctx, p.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if firstErr == nil && rerr.Err != nil && !isNotFound(rerr.Err) {
			firstErr = rerr.Err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return listErr
}

func (p *Provider) Close(context.Context) error { return nil }

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
