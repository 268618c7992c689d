// Package chart builds the Chart.js data contract from projected series.
package chart

import "energycalc/internal/core"

// Dataset labels shown in the chart legends.
const (
	EnergyLabel = "Energy Consumption (kWh)"
	CostLabel   = "Daily Cost"
)

// Default palettes; colors cycle by category index.
var (
	DefaultPiePalette = []string{"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0"}
	DefaultBarPalette = []string{"#36A2EB", "#4BC0C0", "#FFCE56", "#FF6384"}
)

type (
	// Dataset is one Chart.js dataset.
	Dataset struct {
		Label           string    `json:"label"`
		Data            []float64 `json:"data"`
		BackgroundColor []string  `json:"backgroundColor"`
	}

	// Data is the payload accepted by the Chart.js renderer.
	Data struct {
		Labels   []string  `json:"labels"`
		Datasets []Dataset `json:"datasets"`
	}

	// Set groups the two charts of the page.
	Set struct {
		Pie Data `json:"pie"`
		Bar Data `json:"bar"`
	}

	// Palettes configures the colors of each chart.
	Palettes struct {
		Pie []string
		Bar []string
	}
)

// DefaultPalettes returns the built-in palettes.
func DefaultPalettes() Palettes {
	return Palettes{Pie: DefaultPiePalette, Bar: DefaultBarPalette}
}

// Build produces the energy pie and cost bar charts for a series.
func Build(s core.Series, p Palettes) Set {
	return Set{
		Pie: single(s.Labels, EnergyLabel, s.Energy, p.Pie),
		Bar: single(s.Labels, CostLabel, s.Cost, p.Bar),
	}
}

func single(labels []string, name string, values []float64, palette []string) Data {
	data := make([]float64, len(values))
	copy(data, values)
	return Data{
		Labels: append(make([]string, 0, len(labels)), labels...),
		Datasets: []Dataset{{
			Label:           name,
			Data:            data,
			BackgroundColor: assignColors(len(labels), palette),
		}},
	}
}

func assignColors(count int, palette []string) []string {
	if len(palette) == 0 {
		palette = DefaultPiePalette
	}
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = palette[i%len(palette)]
	}
	return colors
}
