package status

import (
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/database"
)

// buildPriceChart 价格折线 + 决策散点叠加。
func buildPriceChart(prices []database.PricePoint, records []decision.Record, since time.Time) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Token Price & Decisions",
			Subtitle: "price in SOL, markers are executed decisions",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	labels := make([]string, 0, len(prices))
	points := make([]opts.LineData, 0, len(prices))
	for _, p := range prices {
		labels = append(labels, p.At.Format("01-02 15:04"))
		points = append(points, opts.LineData{Value: p.Price})
	}
	line.SetXAxis(labels).AddSeries("price", points)

	scatter := charts.NewScatter()
	marks := make([]opts.ScatterData, 0)
	markLabels := make([]string, 0)
	for _, rec := range records {
		if !rec.Executed || rec.DecidedAt.Before(since) {
			continue
		}
		markLabels = append(markLabels, rec.DecidedAt.Format("01-02 15:04"))
		marks = append(marks, opts.ScatterData{
			Value:      rec.Price,
			Symbol:     "diamond",
			SymbolSize: 12,
		})
	}
	if len(marks) > 0 {
		scatter.SetXAxis(markLabels).AddSeries("decisions", marks)
		line.Overlap(scatter)
	}
	return line
}
