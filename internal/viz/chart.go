// Package viz renders query result rows into base64-encoded PNG charts.
package viz

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 1024
	chartHeight = 512

	// autoKindBarMax is the row count up to which "auto" picks a bar chart;
	// larger series read better as a line.
	autoKindBarMax = 10
)

// Renderer implements contracts.ChartRenderer with go-chart.
type Renderer struct{}

var _ contracts.ChartRenderer = (*Renderer)(nil)

func NewRenderer() *Renderer { return &Renderer{} }

// Render builds a chart from rows. kind may be "auto", "bar", "line" or
// "pie"; empty xColumn/yColumn are auto-detected (first label-like column
// as x, first numeric column as y).
func (r *Renderer) Render(rows []models.Row, kind, title, xColumn, yColumn string) (*models.ChartDescriptor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to chart")
	}

	xCol, yCol, err := resolveAxes(rows, xColumn, yColumn)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		y, ok := toFloat(row[yCol])
		if !ok {
			continue
		}
		labels = append(labels, fmt.Sprintf("%v", row[xCol]))
		values = append(values, y)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("column %q has no numeric values", yCol)
	}

	if kind == "" || kind == "auto" {
		kind = "bar"
		if len(values) > autoKindBarMax {
			kind = "line"
		}
	}
	if title == "" {
		title = fmt.Sprintf("%s by %s", yCol, xCol)
	}

	var buf bytes.Buffer
	switch kind {
	case "bar":
		err = renderBar(&buf, title, labels, values)
	case "line":
		err = renderLine(&buf, title, labels, values)
	case "pie":
		err = renderPie(&buf, title, labels, values)
	default:
		return nil, fmt.Errorf("unknown chart kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", kind, err)
	}

	log.Debug().Str("kind", kind).Int("points", len(values)).Msg("Chart rendered")
	return &models.ChartDescriptor{
		Kind:        kind,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		XField:      xCol,
		YField:      yCol,
		Title:       title,
	}, nil
}

func renderBar(buf *bytes.Buffer, title string, labels []string, values []float64) error {
	bars := make([]chart.Value, len(values))
	for i := range values {
		bars[i] = chart.Value{Label: labels[i], Value: values[i]}
	}
	graph := chart.BarChart{
		Title:    title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 40,
		Bars:     bars,
	}
	return graph.Render(chart.PNG, buf)
}

func renderLine(buf *bytes.Buffer, title string, labels []string, values []float64) error {
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					if i := int(f); i >= 0 && i < len(labels) && f == float64(i) {
						return labels[i]
					}
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: xs, YValues: values},
		},
	}
	return graph.Render(chart.PNG, buf)
}

func renderPie(buf *bytes.Buffer, title string, labels []string, values []float64) error {
	slices := make([]chart.Value, 0, len(values))
	for i, v := range values {
		if v <= 0 {
			continue // pie slices must be positive
		}
		slices = append(slices, chart.Value{Label: labels[i], Value: v})
	}
	if len(slices) == 0 {
		return fmt.Errorf("no positive values for pie chart")
	}
	graph := chart.PieChart{
		Title:  title,
		Width:  chartHeight, // square canvas
		Height: chartHeight,
		Values: slices,
	}
	return graph.Render(chart.PNG, buf)
}

// resolveAxes fills in missing axis columns: the first non-numeric column
// (in sorted column order) becomes x, the first numeric column becomes y.
func resolveAxes(rows []models.Row, xColumn, yColumn string) (string, string, error) {
	first := rows[0]

	if xColumn != "" {
		if _, ok := first[xColumn]; !ok {
			return "", "", fmt.Errorf("x column %q not in result set", xColumn)
		}
	}
	if yColumn != "" {
		if _, ok := first[yColumn]; !ok {
			return "", "", fmt.Errorf("y column %q not in result set", yColumn)
		}
	}
	if xColumn != "" && yColumn != "" {
		return xColumn, yColumn, nil
	}

	// Stable column order: sort the keys.
	cols := make([]string, 0, len(first))
	for col := range first {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		_, numeric := toFloat(first[col])
		if yColumn == "" && numeric && col != xColumn {
			yColumn = col
		}
		if xColumn == "" && !numeric && col != yColumn {
			xColumn = col
		}
	}
	// All-numeric result sets: use the first column as the label axis.
	if xColumn == "" {
		for _, col := range cols {
			if col != yColumn {
				xColumn = col
				break
			}
		}
	}
	if xColumn == "" || yColumn == "" {
		return "", "", fmt.Errorf("could not detect chart axes from columns %v", cols)
	}
	return xColumn, yColumn, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
