package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/bookcache"
	"github.com/hupe1980/bookcache/archive"
	"github.com/hupe1980/bookcache/blobstore"
	"github.com/hupe1980/bookcache/provider"
	"github.com/urfave/cli/v2"
)

var (
	dirFlag = &cli.StringFlag{
		Name:     "dir",
		Usage:    "Directory holding the book archives",
		EnvVars:  []string{"BOOKCACHE_DIR"},
		Required: true,
	}
	compressionFlag = &cli.StringFlag{
		Name:  "compression",
		Usage: "Archive compression (none, lz4, zstd, snappy, s2, gzip)",
		Value: archive.CompressionZSTD.String(),
	}
	maxBytesFlag = &cli.Int64Flag{
		Name:    "max-bytes",
		Usage:   "Cache byte budget",
		EnvVars: []string{"BOOKCACHE_MAX_BYTES"},
	}
	loadModeFlag = &cli.StringFlag{
		Name:    "load-mode",
		Usage:   "Miss handling (serialized, coalesced)",
		EnvVars: []string{"BOOKCACHE_LOAD_MODE"},
		Value:   bookcache.LoadSerialized.String(),
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level (debug, info, warn, error)",
		Value: "warn",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "bookcache",
		Usage: "pack books into archives and read them through an LRU cache",
		Flags: []cli.Flag{verbosityFlag},
		Commands: []*cli.Command{
			{
				Name:      "pack",
				Usage:     "Encode files into book archives",
				ArgsUsage: "FILE...",
				Flags:     []cli.Flag{dirFlag, compressionFlag},
				Action:    pack,
			},
			{
				Name:      "get",
				Usage:     "Read books through the cache",
				ArgsUsage: "NAME...",
				Flags:     []cli.Flag{dirFlag, maxBytesFlag, loadModeFlag},
				Action:    get,
			},
			{
				Name:   "list",
				Usage:  "List archived books",
				Flags:  []cli.Flag{dirFlag},
				Action: list,
			},
		},
	}
}

func archiveProvider(ctx *cli.Context) *provider.ArchiveProvider {
	return provider.NewArchiveProvider(blobstore.NewLocalStore(ctx.String(dirFlag.Name)))
}

func pack(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no files given")
	}

	c, err := archive.ParseCompression(ctx.String(compressionFlag.Name))
	if err != nil {
		return err
	}

	p := archiveProvider(ctx)
	for _, path := range ctx.Args().Slice() {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := p.Pack(ctx.Context, name, content, c); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "packed %s (%d bytes, %s)\n", name, len(content), c)
	}
	return nil
}

func get(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no book names given")
	}

	var mode bookcache.LoadMode
	if err := mode.UnmarshalText([]byte(ctx.String(loadModeFlag.Name))); err != nil {
		return err
	}

	level, err := parseLevel(ctx.String(verbosityFlag.Name))
	if err != nil {
		return err
	}

	s := bookcache.Settings{
		MaxBytes:        ctx.Int64(maxBytesFlag.Name),
		LoadMode:        mode,
		WarmConcurrency: bookcache.DefaultWarmConcurrency,
	}
	c, err := bookcache.NewFromSettings(s, archiveProvider(ctx), bookcache.WithLogLevel(level))
	if err != nil {
		return err
	}

	for _, name := range ctx.Args().Slice() {
		cached := c.Contains(name)

		b, err := c.GetBook(ctx.Context, name)
		if err != nil {
			if errors.Is(err, bookcache.ErrNotFound) {
				fmt.Fprintf(ctx.App.Writer, "%s\tnot found\n", name)
				continue
			}
			return err
		}

		status := "miss"
		if cached {
			status = "hit"
		}
		fmt.Fprintf(ctx.App.Writer, "%s\t%d\t%s\n", b.Name(), b.Size(), status)
	}

	st := c.Stats()
	fmt.Fprintf(ctx.App.Writer, "hits=%d misses=%d evictions=%d resets=%d items=%d bytes=%d/%d\n",
		st.Hits, st.Misses, st.Evictions, st.Resets, st.Items, st.Bytes, st.MaxBytes)
	return nil
}

func list(ctx *cli.Context) error {
	names, err := archiveProvider(ctx).Names(ctx.Context)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(ctx.App.Writer, name)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid verbosity %q: %w", s, err)
	}
	return level, nil
}
