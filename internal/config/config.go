// Package config loads the rendercachectl YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/rendercache"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "rendercache.yaml"

type Config struct {
	Source string `yaml:"-"`

	Namespace string   `yaml:"namespace"`
	Codec     string   `yaml:"codec"` // bytes | zstd | lz4
	Sizing    Sizing   `yaml:"sizing"`
	Store     Store    `yaml:"store"`
	GenStore  GenStore `yaml:"genstore"`
	AWS       AWS      `yaml:"aws"`
}

type Sizing struct {
	Policy string  `yaml:"policy"` // growth | exact | step
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Rate   float64 `yaml:"rate"`
}

type Store struct {
	Type  string        `yaml:"type"` // disk | redis | s3 | minio
	TTL   time.Duration `yaml:"ttl"`
	Disk  Disk          `yaml:"disk"`
	Redis Redis         `yaml:"redis"`
	S3    Bucket        `yaml:"s3"`
	MinIO MinIO         `yaml:"minio"`
}

type Disk struct {
	Root string `yaml:"root"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type Bucket struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type MinIO struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

type GenStore struct {
	Type     string        `yaml:"type"` // store | redis | dynamodb
	TTL      time.Duration `yaml:"ttl"`
	Redis    Redis         `yaml:"redis"`
	DynamoDB DynamoDB      `yaml:"dynamodb"`
}

type DynamoDB struct {
	Table string `yaml:"table"`
}

type AWS struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`
	Endpoint string `yaml:"endpoint"` // S3-compatible endpoint override
}

// Default is the configuration used when no file exists.
func Default() Config {
	return Config{
		Namespace: "plots",
		Codec:     "bytes",
		Sizing:    Sizing{Policy: "growth", Width: 400, Height: 400, Rate: 1.2},
		Store:     Store{Type: "disk", Disk: Disk{Root: ".rendercache"}},
		GenStore:  GenStore{Type: "store"},
	}
}

// Load reads path over Default. An empty path tries DefaultFile and falls
// back to defaults when it does not exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Source = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Namespace) == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	switch c.Codec {
	case "", "bytes", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	if _, err := c.Sizing.Build(); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Type {
	case "disk":
		if c.Store.Disk.Root == "" {
			errs = append(errs, errors.New("store.disk.root is required"))
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required"))
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3.bucket is required"))
		}
	case "minio":
		if c.Store.MinIO.Endpoint == "" || c.Store.MinIO.Bucket == "" {
			errs = append(errs, errors.New("store.minio.endpoint and store.minio.bucket are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}
	switch c.GenStore.Type {
	case "", "store":
	case "redis":
		if c.GenStore.Redis.Addr == "" && c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("genstore.redis.addr is required"))
		}
	case "dynamodb":
		if c.GenStore.DynamoDB.Table == "" {
			errs = append(errs, errors.New("genstore.dynamodb.table is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown genstore type %q", c.GenStore.Type))
	}
	return errors.Join(errs...)
}

// Build returns the sizing policy described by s.
func (s Sizing) Build() (rendercache.SizingPolicy, error) {
	switch s.Policy {
	case "", "growth":
		g := rendercache.GrowthRatio{Width: s.Width, Height: s.Height, Rate: s.Rate}
		if g.Width == 0 {
			g.Width = 400
		}
		if g.Height == 0 {
			g.Height = 400
		}
		if g.Rate == 0 {
			g.Rate = 1.2
		}
		if g.Width < 0 || g.Height < 0 || g.Rate <= 1 {
			return nil, fmt.Errorf("bad growth sizing %+v", s)
		}
		return g, nil
	case "exact":
		return rendercache.Exact{}, nil
	case "step":
		if s.Width < 1 || s.Height < 1 {
			return nil, fmt.Errorf("step sizing needs width and height >= 1, got %gx%g", s.Width, s.Height)
		}
		return rendercache.Step{Width: int(s.Width), Height: int(s.Height)}, nil
	}
	return nil, fmt.Errorf("unknown sizing policy %q", s.Policy)
}
