package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xuanyeovo/nikoget/archive"
	"github.com/xuanyeovo/nikoget/async"
	"github.com/xuanyeovo/nikoget/internal/history"
	"github.com/xuanyeovo/nikoget/resolvers"
)

func main() {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "nikoget",
		Usage: "download audio from music streaming sites",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				level.SetLevel(zapcore.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "download",
				Aliases:   []string{"dl"},
				Usage:     "download one or more URLs",
				ArgsUsage: "URL...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   ".",
						Usage:   "save downloaded audio to `DIR`",
					},
					&cli.BoolFlag{
						Name:    "all",
						Aliases: []string{"a"},
						Usage:   "download every entry instead of asking which one",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "re-download URLs already in the history",
					},
					&cli.StringFlag{
						Name:  "history",
						Value: defaultHistoryPath(),
						Usage: "download history database `FILE`",
					},
					&cli.BoolFlag{
						Name:  "no-history",
						Usage: "neither consult nor record the download history",
					},
				},
				Action: func(c *cli.Context) error {
					return downloadCommand(ctx, c)
				},
			},
			{
				Name:  "history",
				Usage: "list recorded downloads",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "history",
						Value: defaultHistoryPath(),
						Usage: "download history database `FILE`",
					},
				},
				Action: historyCommand,
			},
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.RunContext(ctx, os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		err = <-result
		if err != nil {
			logger.Fatal(err.Error())
		}
	}
}

func downloadCommand(ctx context.Context, c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("no URLs given", 1)
	}
	logger := zap.L()

	outputDir := c.String("output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	registry := resolvers.NewRegistry()
	if _, err := registry.Resolvers(); err != nil {
		logger.Sugar().Warnf("some resolvers failed to load: %v", err)
	}

	opts := []archive.Option{
		archive.WithLogger(logger),
		archive.WithSelector(&terminalSelector{in: bufio.NewReader(os.Stdin), out: os.Stderr}),
		archive.WithProgress(newProgressReporter().report),
	}

	if !c.Bool("no-history") {
		historyPath := c.String("history")
		if err := os.MkdirAll(filepath.Dir(historyPath), 0755); err != nil {
			return fmt.Errorf("cannot create history directory: %w", err)
		}
		db, err := history.Open(historyPath)
		if err != nil {
			return fmt.Errorf("cannot open history database: %w", err)
		}
		defer db.Close()
		opts = append(opts, archive.WithHistory(db))
	}

	archiver := archive.New(registry, archive.Config{
		OutputDir:   outputDir,
		DownloadAll: c.Bool("all"),
		Force:       c.Bool("force"),
	}, opts...)

	return archiver.ProcessAll(ctx, c.Args().Slice())
}

func historyCommand(c *cli.Context) error {
	db, err := history.Open(c.String("history"))
	if err != nil {
		return fmt.Errorf("cannot open history database: %w", err)
	}
	defer db.Close()

	records, err := db.List()
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Printf("%s\t%s\t%s\n", record.DownloadedAt.Format("2006-01-02 15:04"), record.Title, record.URL)
	}
	return nil
}

func defaultHistoryPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "nikoget-history.db"
	}
	return filepath.Join(configDir, "nikoget", "history.db")
}

// terminalSelector asks the user to pick one entry from a numbered list.
type terminalSelector struct {
	in  *bufio.Reader
	out io.Writer
}

func (s *terminalSelector) SelectOne(items []archive.SelectItem) (string, bool) {
	fmt.Fprintln(s.out, "Multiple items found:")
	for i, item := range items {
		fmt.Fprintf(s.out, "%3d) %s\n", i+1, item.Label)
	}
	for {
		fmt.Fprint(s.out, "Select one (q to quit): ")
		line, err := s.in.ReadString('\n')
		if err != nil {
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "q" {
			return "", false
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(items) {
			return items[n-1].ID, true
		}
		fmt.Fprintln(s.out, "invalid selection")
	}
}

// progressReporter renders one progress bar at a time, switching bars when the label
// changes. Downloads run sequentially, so a single bar is enough.
type progressReporter struct {
	mu    sync.Mutex
	label string
	bar   *progressbar.ProgressBar
}

func newProgressReporter() *progressReporter {
	return &progressReporter{}
}

func (p *progressReporter) report(label string, downloaded, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || p.label != label {
		p.label = label
		max := total
		if max <= 0 {
			max = -1 // spinner until the size is known
		}
		p.bar = progressbar.DefaultBytes(max, label)
	}
	if total > 0 && p.bar.GetMax64() != total {
		p.bar.ChangeMax64(total)
	}
	p.bar.Set64(downloaded)
}
