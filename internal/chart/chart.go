// Package chart renders result history as a standalone HTML page.
package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/stats"
)

// maxCharBars limits the per-character chart to the weakest characters.
const maxCharBars = 15

// Render writes the history page for report. window is the moving average
// size applied to WPM.
func Render(w io.Writer, report stats.Report, window int) error {
	if len(report.Results) == 0 {
		return fmt.Errorf("no results to chart")
	}
	page := components.NewPage()
	page.PageTitle = "typetest history"
	page.AddCharts(historyChart(report.Results, window))
	if len(report.CharAggsAll) > 0 {
		page.AddCharts(charChart(report.CharAggsAll))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func historyChart(results []model.TestResult, window int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Speed Over Time",
			Subtitle: fmt.Sprintf("%d tests", len(results)),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	labels := make([]string, len(results))
	wpm := make([]float64, len(results))
	raw := make([]opts.LineData, len(results))
	acc := make([]opts.LineData, len(results))
	for i, r := range results {
		labels[i] = r.EndedAt.Local().Format("2006-01-02 15:04")
		wpm[i] = float64(r.WPM)
		raw[i] = opts.LineData{Value: r.RawWPM}
		acc[i] = opts.LineData{Value: r.Accuracy}
	}

	line.SetXAxis(labels).
		AddSeries("WPM", lineData(wpm)).
		AddSeries("Raw", raw).
		AddSeries("Accuracy", acc).
		AddSeries(fmt.Sprintf("WPM avg(%d)", window), lineData(roundAll(stats.MovingAverage(wpm, window)))).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}

func charChart(aggs []model.CharAggregate) *charts.Bar {
	rows := stats.CharRows(aggs)
	if len(rows) > maxCharBars {
		rows = rows[:maxCharBars]
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Weakest Characters", Subtitle: "accuracy %"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Max: 100}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	labels := make([]string, len(rows))
	items := make([]opts.BarData, len(rows))
	for i, r := range rows {
		labels[i] = r.Char
		items[i] = opts.BarData{Value: math.Round(r.Accuracy*1000) / 10}
	}
	bar.SetXAxis(labels).AddSeries("Accuracy", items)
	return bar
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func roundAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Round(v*10) / 10
	}
	return out
}
