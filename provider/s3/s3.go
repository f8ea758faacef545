// Package s3 is an external-scope Provider on Amazon S3 (aws-sdk-go-v2).
// One object per entry under Prefix. S3 PUTs are atomic, so concurrent
// writers from several processes resolve to last-write-wins.
//
// TTL is stored as object metadata and enforced on read; pair with a bucket
// lifecycle rule to reclaim the space.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

const metaExpires = "rendercache-expires" // unix nano

// API is the subset of *s3.Client used by the provider.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Client API
	Bucket string
	Prefix string // e.g. "plots/prod/"
	// ClearConcurrency bounds parallel deletes in Clear; 0 => 16.
	ClearConcurrency int
}

type Provider struct {
	client      API
	bucket      string
	prefix      string
	concurrency int
	now         func() time.Time
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.Clearer       = (*Provider)(nil)
	_ pr.PrefixClearer = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, errors.New("s3 provider: nil client")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 provider: bucket is required")
	}
	c := cfg.ClearConcurrency
	if c <= 0 {
		c = 16
	}
	return &Provider{client: cfg.Client, bucket: cfg.Bucket, prefix: cfg.Prefix, concurrency: c, now: time.Now}, nil
}

func (p *Provider) key(k string) string {
	return path.Join(p.prefix, k)
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()

	if v, ok := out.Metadata[metaExpires]; ok {
		if exp, err := strconv.ParseInt(v, 10, 64); err == nil && p.now().UnixNano() > exp {
			_ = p.Del(ctx, key)
			return nil, false, nil
		}
	}
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.key(key)),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/octet-stream"),
	}
	if ttl > 0 {
		in.Metadata = map[string]string{
			metaExpires: strconv.FormatInt(p.now().Add(ttl).UnixNano(), 10),
		}
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(key)),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// Clear deletes every cache-owned object ("render:" keys) under Prefix.
func (p *Provider) Clear(ctx context.Context) error {
	return p.ClearPrefix(ctx, "render:")
}

// ClearPrefix deletes every object whose cache key starts with prefix.
func (p *Provider) ClearPrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.key(prefix)),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			_ = g.Wait()
			return err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			g.Go(func() error {
				_, err := p.client.DeleteObject(gctx, &s3.DeleteObjectInput{
					Bucket: aws.String(p.bucket),
					Key:    aws.String(key),
				})
				if err != nil && !isNotFound(err) {
					return err
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func (p *Provider) Close(context.Context) error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
