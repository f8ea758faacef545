// Package cli implements rendercachectl, a small operator tool for caches
// living in external stores.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/unkn0wn-root/rendercache"
	"github.com/unkn0wn-root/rendercache/codec"
	"github.com/unkn0wn-root/rendercache/internal/config"
)

// NewApp builds the root command.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "rendercachectl",
		Usage: "inspect and invalidate render caches",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config (default ./" + config.DefaultFile + ")",
				Sources: cli.EnvVars("RENDERCACHE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "namespace",
				Aliases: []string{"n"},
				Usage:   "override the configured namespace",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "treat every key part as a string",
			},
		},
		Commands: []*cli.Command{
			keyCommand(),
			bucketCommand(),
			putCommand(),
			getCommand(),
			invalidateCommand(),
		},
	}
}

func sizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{Name: "width", Aliases: []string{"W"}, Usage: "requested width", Required: true},
		&cli.FloatFlag{Name: "height", Aliases: []string{"H"}, Usage: "requested height", Required: true},
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if ns := cmd.String("namespace"); ns != "" {
		cfg.Namespace = ns
	}
	log.WithField("source", cfg.Source).Debug("config loaded")
	return cfg, nil
}

// withCache opens the configured cache for the duration of fn.
func withCache(ctx context.Context, cmd *cli.Command, fn func(*env) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}

func fingerprint(cmd *cli.Command) (rendercache.Fingerprint, error) {
	if cmd.NArg() == 0 {
		return nil, errors.New("at least one key part is required")
	}
	return ParseParts(cmd.Args().Slice(), cmd.Bool("raw")), nil
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the fingerprint hash and storage key",
		ArgsUsage: "PART...",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "width", Aliases: []string{"W"}, Value: 1},
			&cli.FloatFlag{Name: "height", Aliases: []string{"H"}, Value: 1},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fp, err := fingerprint(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sizing, err := cfg.Sizing.Build()
			if err != nil {
				return err
			}
			// keys never touch the store, so an in-process cache is enough
			c, err := rendercache.New(rendercache.Options[[]byte]{
				Namespace: cfg.Namespace,
				Codec:     codec.Bytes{},
				Sizing:    sizing,
				Disabled:  true,
			})
			if err != nil {
				return err
			}
			defer c.Close(ctx)
			k, err := c.KeyFor(fp, cmd.Float("width"), cmd.Float("height"))
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			fmt.Fprintf(w, "fingerprint %s\n", k.Fingerprint)
			fmt.Fprintf(w, "size        %dx%d\n", k.Width, k.Height)
			fmt.Fprintf(w, "storage     render:%s:%s\n", cfg.Namespace, k.String())
			return nil
		},
	}
}

func bucketCommand() *cli.Command {
	return &cli.Command{
		Name:      "bucket",
		Usage:     "print the cached dimensions for a requested size",
		ArgsUsage: "WIDTH HEIGHT",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return errors.New("bucket needs WIDTH and HEIGHT")
			}
			var wh [2]float64
			for i := range wh {
				if _, err := fmt.Sscan(cmd.Args().Get(i), &wh[i]); err != nil {
					return fmt.Errorf("bad dimension %q", cmd.Args().Get(i))
				}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sizing, err := cfg.Sizing.Build()
			if err != nil {
				return err
			}
			w, h, err := sizing.Quantize(wh[0], wh[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "%dx%d\n", w, h)
			return nil
		},
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "store a prerendered artifact (reads stdin unless --in is given)",
		ArgsUsage: "PART...",
		Flags: append(sizeFlags(),
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "artifact file"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fp, err := fingerprint(cmd)
			if err != nil {
				return err
			}
			var src io.Reader = os.Stdin
			if in := cmd.String("in"); in != "" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			body, err := io.ReadAll(src)
			if err != nil {
				return err
			}
			return withCache(ctx, cmd, func(e *env) error {
				// an existing entry wins; invalidate first to replace it
				ent, err := e.cache.GetOrRender(ctx, fp, cmd.Float("width"), cmd.Float("height"),
					rendercache.RenderFunc[[]byte](func(context.Context, rendercache.RenderContext) ([]byte, error) {
						return body, nil
					}))
				if err != nil {
					return err
				}
				state := "stored"
				if ent.Cached {
					state = "exists"
				}
				fmt.Fprintf(cmd.Root().Writer, "%s %s %s\n", state, ent.Key.String(), humanize.Bytes(uint64(len(ent.Value))))
				return nil
			})
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "fetch a cached artifact without rendering",
		ArgsUsage: "PART...",
		Flags: append(sizeFlags(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the artifact to a file"},
			&cli.BoolFlag{Name: "force", Usage: "write binary output to a terminal"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fp, err := fingerprint(cmd)
			if err != nil {
				return err
			}
			return withCache(ctx, cmd, func(e *env) error {
				ent, ok, err := e.cache.Peek(ctx, fp, cmd.Float("width"), cmd.Float("height"))
				if err != nil {
					return err
				}
				if !ok {
					k, _ := e.cache.KeyFor(fp, cmd.Float("width"), cmd.Float("height"))
					return fmt.Errorf("miss: %s", k.String())
				}
				fmt.Fprintf(cmd.Root().ErrWriter, "%s %s, rendered %s\n",
					ent.Key.String(), humanize.Bytes(uint64(len(ent.Value))), humanize.Time(ent.CreatedAt))

				if out := cmd.String("out"); out != "" {
					return os.WriteFile(out, ent.Value, 0o644)
				}
				w := cmd.Root().Writer
				if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) && !cmd.Bool("force") {
					return errors.New("refusing to write an artifact to a terminal; use --out or --force")
				}
				_, err = w.Write(ent.Value)
				return err
			})
		},
	}
}

func invalidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "invalidate",
		Usage:     "invalidate every entry under a key prefix",
		ArgsUsage: "[PART...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "invalidate every entry of the configured namespace"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			all := cmd.Bool("all")
			if all == (cmd.NArg() > 0) {
				return errors.New("give either key parts or --all")
			}
			return withCache(ctx, cmd, func(e *env) error {
				start := time.Now()
				if all {
					if err := e.cache.InvalidateAll(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "invalidated %s in %s\n", e.cfg.Namespace, time.Since(start).Round(time.Millisecond))
					return nil
				}
				fp := ParseParts(cmd.Args().Slice(), cmd.Bool("raw"))
				if err := e.cache.Invalidate(ctx, fp); err != nil {
					return err
				}
				k, err := e.cache.KeyFor(fp, 1, 1)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "invalidated %s/%s\n", e.cfg.Namespace, k.Fingerprint)
				return nil
			})
		},
	}
}
