package output

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nyepaul/retireplan/internal/domain"
)

// RenderTimelineChart draws the P5/P50/P95 net-worth bands to a PNG file.
func RenderTimelineChart(result *domain.AnalysisResult, path string) error {
	if len(result.Timeline) == 0 {
		return fmt.Errorf("no timeline data to chart")
	}

	years := make([]float64, len(result.Timeline))
	p5 := make([]float64, len(result.Timeline))
	p50 := make([]float64, len(result.Timeline))
	p95 := make([]float64, len(result.Timeline))
	for i, pt := range result.Timeline {
		years[i] = float64(pt.Year)
		p5[i] = pt.P5.InexactFloat64()
		p50[i] = pt.P50.InexactFloat64()
		p95[i] = pt.P95.InexactFloat64()
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s — net worth projection", result.ScenarioName),
		Width:  1024,
		Height: 576,
		XAxis: chart.XAxis{
			Name:           "Year",
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		YAxis: chart.YAxis{
			Name:           "Net worth",
			ValueFormatter: func(v interface{}) string { return chart.FloatValueFormatterWithFormat(v, "$%.0f") },
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "P95",
				XValues: years,
				YValues: p95,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("2e7d32"),
					StrokeWidth: 1.5,
				},
			},
			chart.ContinuousSeries{
				Name:    "Median",
				XValues: years,
				YValues: p50,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("1565c0"),
					StrokeWidth: 2.5,
				},
			},
			chart.ContinuousSeries{
				Name:    "P5",
				XValues: years,
				YValues: p5,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("c62828"),
					StrokeWidth: 1.5,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
