package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/typetest/internal/chart"
	"github.com/verte-zerg/typetest/internal/config"
	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/stats"
	"github.com/verte-zerg/typetest/internal/statsui"
	"github.com/verte-zerg/typetest/internal/store"
)

const defaultCurveWindow = 10

// filterFlags are shared by stats, history and chart.
type filterFlags struct {
	user  string
	lang  string
	mode  string
	since string
	last  int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "username filter")
	cmd.Flags().StringVar(&f.lang, "lang", "", "language filter")
	cmd.Flags().StringVar(&f.mode, "mode", "", "mode filter (time or words)")
	cmd.Flags().StringVar(&f.since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.last, "last", 0, "limit to last N results")
}

func (f *filterFlags) filter() (model.ResultFilter, error) {
	out := model.ResultFilter{
		Username: strings.TrimSpace(f.user),
		Language: strings.TrimSpace(f.lang),
		Last:     f.last,
	}
	if f.last < 0 {
		return out, fmt.Errorf("--last must be >= 0")
	}
	if f.mode != "" {
		mode, err := model.ParseMode(f.mode)
		if err != nil {
			return out, fmt.Errorf("--mode: %w", err)
		}
		out.Mode = mode
	}
	if f.since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", f.since, time.Local)
		if err != nil {
			return out, fmt.Errorf("invalid --since value: %w", err)
		}
		out.Since = &parsed
	}
	return out, nil
}

func openDefaultStore() (*store.Store, func(), error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}, nil
}

func newStatsCmd() *cobra.Command {
	var flags filterFlags
	var window int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse result history",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			if window < 1 {
				return fmt.Errorf("--curve-window must be >= 1")
			}
			st, closeStore, err := openDefaultStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ui := statsui.NewModel(st, model.StatsConfig{Filter: filter, CurveWindow: window})
			program := tea.NewProgram(ui, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("failed to run stats TUI: %w", err)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&window, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var flags filterFlags
	var format string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			st, closeStore, err := openDefaultStore()
			if err != nil {
				return err
			}
			defer closeStore()

			results, err := st.ListResults(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), results, format, terminalWidth())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json or yaml")
	return cmd
}

// writeHistory renders results in format. Table lines are cut to width when
// width is positive.
func writeHistory(w io.Writer, results []model.TestResult, format string, width int) error {
	if results == nil {
		results = []model.TestResult{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return nil
	case "table", "":
		var buf bytes.Buffer
		if err := stats.RenderSummary(&buf, results); err != nil {
			return err
		}
		if len(results) > 0 {
			if err := stats.RenderResultTable(&buf, results); err != nil {
				return err
			}
		}
		return writeTruncated(w, &buf, width)
	default:
		return fmt.Errorf("--format must be table, json or yaml")
	}
}

func writeTruncated(w io.Writer, r io.Reader, width int) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if width > 0 {
			line = runewidth.Truncate(line, width, "")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return scanner.Err()
}

// terminalWidth returns 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

func newChartCmd() *cobra.Command {
	var flags filterFlags
	var out string
	var window int
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Export result history as an HTML chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			if window < 1 {
				return fmt.Errorf("--window must be >= 1")
			}
			st, closeStore, err := openDefaultStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return exportChart(cmd.Context(), st, model.StatsConfig{Filter: filter, CurveWindow: window}, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "typetest-chart.html", "output HTML file")
	cmd.Flags().IntVar(&window, "window", defaultCurveWindow, "moving average window")
	return cmd
}

func exportChart(ctx context.Context, st *store.Store, cfg model.StatsConfig, out string) error {
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := chart.Render(&buf, report, cfg.CurveWindow); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	logErrf("Wrote %s\n", out)
	return nil
}
