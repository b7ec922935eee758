package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	ncmunlock "github.com/zetetos/ncm-unlock"
	"github.com/zetetos/ncm-unlock/internal/batch"
	"github.com/zetetos/ncm-unlock/internal/config"
	"github.com/zetetos/ncm-unlock/internal/logging"
	"github.com/zetetos/ncm-unlock/internal/tagger"
)

const usage = `ncmdump - Decode NCM containers into plain audio files

Usage:
  ncmdump [flags] <file|glob>...

Each argument is a file path or a glob pattern such as 'music/*.ncm'.
Decoded files are written next to their input unless --out-dir is set.

Flags:
`

// cliConfig is the merged result of defaults, config file and flags.
type cliConfig struct {
	OutDir         string `koanf:"out-dir"`
	Workers        int    `koanf:"workers"`
	ChunkSize      int    `koanf:"chunk-size"`
	Tag            bool   `koanf:"tag"`
	Cover          bool   `koanf:"cover"`
	StrictMetadata bool   `koanf:"strict-metadata"`
	Report         string `koanf:"report"`
	LogLevel       string `koanf:"log-level"`
	NoColor        bool   `koanf:"no-color"`
}

var defaults = map[string]any{
	"out-dir":         "",
	"workers":         0,
	"chunk-size":      ncmunlock.DefaultChunkSize,
	"tag":             false,
	"cover":           false,
	"strict-metadata": false,
	"report":          "",
	"log-level":       "warn",
	"no-color":        false,
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("ncmdump", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	flags.StringP("out-dir", "o", "", "Directory for decoded files (default: next to each input)")
	flags.IntP("workers", "j", 0, "Files decoded in parallel (default: number of CPUs)")
	flags.Int("chunk-size", ncmunlock.DefaultChunkSize, "Bytes decrypted per step")
	flags.Bool("tag", false, "Write title, album, artists and cover into MP3 and FLAC outputs")
	flags.Bool("cover", false, "Save the embedded cover image next to each output")
	flags.Bool("strict-metadata", false, "Validate metadata against the built-in schema")
	flags.String("report", "", "Write a CSV report of every file to this path")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error, off")
	flags.Bool("no-color", false, "Disable colored output")
	flags.StringP(config.FileFlag, "c", "", "YAML file with flag defaults")

	return flags
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := newFlagSet()

	err := flags.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return 2
	}

	var cfg cliConfig

	err = config.Load(flags, defaults, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return 2
	}

	printer := newStatusPrinter(cfg.NoColor)

	if flags.NArg() == 0 {
		flags.Usage()

		return 2
	}

	paths, err := batch.Expand(flags.Args())
	if err != nil {
		printer.Error(os.Stderr, err)

		return 1
	}

	log := logging.NewConsole(cfg.LogLevel, nil)

	decoder, err := ncmunlock.New(ncmunlock.Options{
		Logger:         &log,
		ChunkSize:      cfg.ChunkSize,
		Tag:            cfg.Tag,
		WriteCover:     cfg.Cover,
		StrictMetadata: cfg.StrictMetadata,
	})
	if err != nil {
		printer.Error(os.Stderr, err)

		return 1
	}

	if cfg.OutDir != "" {
		err = os.MkdirAll(cfg.OutDir, 0o755)
		if err != nil {
			printer.Error(os.Stderr, fmt.Errorf("create output directory: %w", err))

			return 1
		}
	}

	// Stop handing out new files on interrupt; files in flight are discarded.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex

	outcomes := batch.Run(ctx, paths, cfg.Workers, func(ctx context.Context, path string) (batch.Outcome, error) {
		res, err := decoder.DecodeFile(ctx, path, cfg.OutDir)
		if err != nil {
			return batch.Outcome{}, err
		}

		mu.Lock()
		printResult(stdout, printer, res)
		mu.Unlock()

		return batch.Outcome{Output: res.Output, Format: res.Format, Bytes: res.Size}, nil
	})

	for _, o := range outcomes {
		if o.Err != nil {
			printer.Failed(stdout, o.Input, o.Err)
		}
	}

	if cfg.Report != "" {
		err = writeReport(cfg.Report, outcomes)
		if err != nil {
			printer.Error(os.Stderr, err)

			return 1
		}
	}

	failed := batch.Failed(outcomes)
	fmt.Fprintf(stdout, "%d decoded, %d failed\n", len(outcomes)-failed, failed)

	if failed > 0 {
		return 1
	}

	return 0
}

func printResult(w io.Writer, printer *statusPrinter, res *ncmunlock.FileResult) {
	tagErr := res.TagErr
	if errors.Is(tagErr, tagger.ErrUnsupportedFormat) {
		tagErr = nil
	}

	warned := res.MetadataErr != nil || tagErr != nil || res.CoverErr != nil
	printer.Decoded(w, res.Input, res.Output, res.Format, warned)

	if res.MetadataErr != nil {
		printer.Detail(w, "metadata", res.MetadataErr)
	}

	if tagErr != nil {
		printer.Detail(w, "tags", tagErr)
	}

	if res.CoverErr != nil {
		printer.Detail(w, "cover", res.CoverErr)
	}
}

func writeReport(path string, outcomes []batch.Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	err = batch.WriteReport(f, outcomes)
	if err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}
