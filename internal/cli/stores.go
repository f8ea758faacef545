package cli

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rendercache"
	"github.com/unkn0wn-root/rendercache/codec"
	"github.com/unkn0wn-root/rendercache/genstore"
	"github.com/unkn0wn-root/rendercache/internal/config"
	applog "github.com/unkn0wn-root/rendercache/log/apex"
	pr "github.com/unkn0wn-root/rendercache/provider"
	"github.com/unkn0wn-root/rendercache/provider/disk"
	"github.com/unkn0wn-root/rendercache/provider/minio"
	"github.com/unkn0wn-root/rendercache/provider/redis"
	s3p "github.com/unkn0wn-root/rendercache/provider/s3"
)

// env is an opened external-scope cache plus what it was built from.
type env struct {
	cfg   config.Config
	cache rendercache.Cache[[]byte]
	store pr.Provider
}

func (e *env) Close(ctx context.Context) error { return e.cache.Close(ctx) }

// open builds the cache described by cfg. Clients created here are owned by
// the returned env and closed with it.
func open(ctx context.Context, cfg config.Config) (*env, error) {
	sizing, err := cfg.Sizing.Build()
	if err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
		}
		if cfg.AWS.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	store, err := openStore(cfg, loadAWS)
	if err != nil {
		return nil, err
	}
	gens, err := openGens(cfg, store, loadAWS)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	c, err := rendercache.New(rendercache.Options[[]byte]{
		Namespace:   cfg.Namespace,
		Scope:       rendercache.ScopeExternal,
		Provider:    store,
		Codec:       artifactCodec(cfg.Codec),
		Sizing:      sizing,
		GenStore:    gens,
		TTL:         cfg.Store.TTL,
		Logger:      applog.Logger{L: log.Log},
		StrictStore: true,
	})
	if err != nil {
		_ = gens.Close(ctx)
		_ = store.Close(ctx)
		return nil, err
	}
	log.WithFields(log.Fields{
		"ns":       cfg.Namespace,
		"store":    cfg.Store.Type,
		"genstore": cfg.GenStore.Type,
	}).Debug("cache opened")
	return &env{cfg: cfg, cache: c, store: store}, nil
}

func artifactCodec(name string) codec.Codec[[]byte] {
	switch name {
	case "zstd":
		return codec.Zstd[[]byte]{Inner: codec.Bytes{}}
	case "lz4":
		return codec.LZ4[[]byte]{Inner: codec.Bytes{}}
	default:
		return codec.Bytes{}
	}
}

func redisClient(r config.Redis) goredis.UniversalClient {
	return goredis.NewClient(&goredis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
}

func openStore(cfg config.Config, loadAWS func() (aws.Config, error)) (pr.Provider, error) {
	sc := cfg.Store
	switch sc.Type {
	case "disk":
		return disk.New(disk.Config{Root: sc.Disk.Root})
	case "redis":
		return redis.New(redis.Config{Client: redisClient(sc.Redis), Prefix: sc.Redis.Prefix, CloseClient: true})
	case "s3":
		ac, err := loadAWS()
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(ac, func(o *s3.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3p.New(s3p.Config{Client: client, Bucket: sc.S3.Bucket, Prefix: sc.S3.Prefix})
	case "minio":
		mc, err := miniogo.New(sc.MinIO.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(sc.MinIO.AccessKey, sc.MinIO.SecretKey, ""),
			Secure: sc.MinIO.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.New(minio.Config{Client: mc, Bucket: sc.MinIO.Bucket, Prefix: sc.MinIO.Prefix})
	}
	return nil, fmt.Errorf("unknown store type %q", sc.Type)
}

func openGens(cfg config.Config, store pr.Provider, loadAWS func() (aws.Config, error)) (genstore.GenStore, error) {
	gc := cfg.GenStore
	switch gc.Type {
	case "", "store":
		// counters live in the artifact store and persist with it
		return genstore.NewProviderGenStore(store), nil
	case "redis":
		r := gc.Redis
		if r.Addr == "" {
			r = cfg.Store.Redis
		}
		return genstore.NewRedisGenStore(genstore.RedisConfig{
			Client:      redisClient(r),
			Namespace:   cfg.Namespace,
			TTL:         gc.TTL,
			CloseClient: true,
		})
	case "dynamodb":
		ac, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return genstore.NewDynamoGenStore(genstore.DynamoConfig{
			Client:    dynamodb.NewFromConfig(ac),
			Table:     gc.DynamoDB.Table,
			Namespace: cfg.Namespace,
		})
	}
	return nil, fmt.Errorf("unknown genstore type %q", gc.Type)
}
