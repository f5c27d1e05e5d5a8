package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pagemirror/internal/config"
	"pagemirror/internal/crawler"
	"pagemirror/internal/ioformats"
	"pagemirror/internal/models"
	"pagemirror/internal/orchestrator"
	"pagemirror/pkg/logger"
)

const usage = "Usage: fetch [--metadata] <url1> [<url2> ...]"

// errUsage is returned after the usage line has already been printed.
var errUsage = errors.New("no urls given")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command and returns the process exit code. Errors that
// stop the whole invocation are printed to stderr; per-URL failures are not
// among them.
func execute(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
	default:
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		metadataMode bool
		input        string
		asJSON       bool
		configFile   string
	)

	cmd := &cobra.Command{
		Use:           "fetch [--metadata] <url>...",
		Short:         "Mirror web pages and their assets for offline viewing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if input != "" {
				more, err := ioformats.ReadURLs(input)
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				urls = append(urls, more...)
			}
			if len(urls) == 0 {
				fmt.Fprintln(stderr, usage)
				return errUsage
			}

			cfg, err := config.LoadConfig(cmd.Flags(), configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			client := crawler.NewHTTPClient(crawler.Options{
				Timeout:     cfg.FetchTimeout,
				DialTimeout: cfg.DialTimeout,
				SizeCap:     cfg.MaxBodyBytes,
				UserAgent:   cfg.UserAgent,
				RPS:         cfg.FetchRPS,
				Burst:       cfg.FetchBurst,
			})
			orch := orchestrator.New(orchestrator.Options{
				BaseDir:          cfg.BaseDir,
				PageConcurrency:  cfg.PageConcurrency,
				AssetConcurrency: cfg.AssetConcurrency,
			}, client, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mode := models.ModeBuild
			if metadataMode {
				mode = models.ModeInspect
			}
			reports := orch.Run(ctx, urls, mode)

			if asJSON {
				return ioformats.WriteNDJSON(stdout, reports)
			}
			printReports(stdout, stderr, reports)
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintln(stderr, usage)
		return err
	})

	f := cmd.Flags()
	f.BoolVar(&metadataMode, "metadata", false, "print saved metadata instead of fetching (offline)")
	f.StringVarP(&input, "input", "i", "", "file with more URLs (csv with 'url' column, ndjson or one per line; - for stdin)")
	f.BoolVar(&asJSON, "json", false, "write one NDJSON report per URL")
	f.StringVar(&configFile, "config", "", "YAML config file")
	f.String("base-dir", "downloads", "directory holding one mirror per host")
	f.Int("page-concurrency", 4, "pages mirrored in parallel")
	f.Int("asset-concurrency", 8, "assets downloaded in parallel per page")
	f.Duration("timeout", 0, "per-request fetch timeout")
	f.Float64("rps", 0, "max fetches per second (0 = unlimited)")
	f.String("user-agent", "", "User-Agent header")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "console", "console or json")

	return cmd
}

func printReports(stdout, stderr io.Writer, reports []models.Report) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintln(stderr, r.Error)
			continue
		}
		for _, line := range orchestrator.Lines(r) {
			fmt.Fprintln(stdout, line)
		}
	}
}
