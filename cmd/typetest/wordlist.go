package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/typetest/internal/config"
	"github.com/verte-zerg/typetest/internal/wordfreq"
	"github.com/verte-zerg/typetest/internal/wordlist"
)

const defaultWordlistSize = 5000

type wordlistOptions struct {
	lang     string
	size     int
	force    bool
	indexURL string
	cacheDir string
	outDir   string
}

func newWordlistCmd() *cobra.Command {
	var o wordlistOptions
	cmd := &cobra.Command{
		Use:   "wordlist",
		Short: "Download frequency-ranked word lists from wordfreq",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.cacheDir = config.DefaultWordfreqCacheDir()
			o.outDir = config.DefaultWordListDir()
			return downloadWordLists(cmd.Context(), cmd.ErrOrStderr(), o)
		},
	}
	cmd.Flags().StringVar(&o.lang, "lang", "en", "language code, comma separated codes, or 'all'")
	cmd.Flags().IntVar(&o.size, "size", defaultWordlistSize, "number of words per list")
	cmd.Flags().BoolVar(&o.force, "force", false, "overwrite existing lists")
	cmd.Flags().StringVar(&o.indexURL, "index-url", wordfreq.DefaultIndexURL, "PyPI JSON endpoint of the wordfreq package")
	_ = cmd.Flags().MarkHidden("index-url")
	return cmd
}

// downloadWordLists writes <lang>.txt lists for the requested languages into
// o.outDir. With --lang all, languages that already have a list or yield no
// usable words are skipped instead of failing the run.
func downloadWordLists(ctx context.Context, progress io.Writer, o wordlistOptions) error {
	if o.size <= 0 {
		return fmt.Errorf("--size must be > 0")
	}
	say := func(format string, args ...any) {
		_, _ = fmt.Fprintf(progress, format, args...)
	}

	say("Fetching wordfreq metadata...\n")
	wheel, err := wordfreq.Fetcher{IndexURL: o.indexURL, CacheDir: o.cacheDir}.Latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch wordfreq: %w", err)
	}
	if wheel.Cached {
		say("Using cached %s\n", wheel.Filename)
	} else {
		say("Downloaded %s\n", wheel.Filename)
	}

	arc, err := wordfreq.OpenArchive(wheel.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := arc.Close(); cerr != nil {
			_ = cerr
		}
	}()
	langs, all, err := wordfreq.SelectLanguages(o.lang, arc.Languages())
	if err != nil {
		return err
	}

	var pending []string
	for _, lang := range langs {
		path := filepath.Join(o.outDir, lang+".txt")
		if o.force {
			pending = append(pending, lang)
			continue
		}
		_, err := os.Stat(path)
		switch {
		case err == nil && all:
			say("Skipping %s (list exists)\n", lang)
		case err == nil:
			return fmt.Errorf("word list already exists: %s (use --force to overwrite)", path)
		case os.IsNotExist(err):
			pending = append(pending, lang)
		default:
			return fmt.Errorf("failed to stat word list: %w", err)
		}
	}

	lists := make([][]string, len(pending))
	sizes := make([]string, len(pending))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, lang := range pending {
		g.Go(func() error {
			words, size, err := arc.Extract(lang, o.size)
			if err != nil {
				if all {
					return nil
				}
				return fmt.Errorf("failed to extract %s: %w", lang, err)
			}
			lists[i], sizes[i] = words, size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, lang := range pending {
		if lists[i] == nil {
			say("Skipping %s (no usable words)\n", lang)
			continue
		}
		if sizes[i] != wordfreq.SizeLarge {
			say("Using %s list for %s\n", sizes[i], lang)
		}
		path := filepath.Join(o.outDir, lang+".txt")
		if err := wordlist.SaveWords(path, lists[i]); err != nil {
			return err
		}
		say("Wrote %s (%d words)\n", path, len(lists[i]))
	}

	license, err := arc.License()
	if err != nil {
		return err
	}
	if err := wordfreq.WriteNotices(o.outDir, license); err != nil {
		return err
	}
	say("Wrote %s, %s and %s\n", wordfreq.AttributionFile, wordfreq.LicenseFile, wordfreq.DataLicenseFile)
	return nil
}
