package core

type (
	// CategoryTotal is the accumulated energy and cost of one category.
	CategoryTotal struct {
		Category  string  `json:"category"`
		EnergyKWh float64 `json:"energyKwh"`
		Cost      float64 `json:"cost"`
	}

	// Totals holds per-category totals in order of first appearance.
	Totals []CategoryTotal

	// Series is the chart-ready projection of Totals. The three slices are
	// index-aligned and never nil.
	Series struct {
		Labels []string  `json:"labels"`
		Energy []float64 `json:"energy"`
		Cost   []float64 `json:"cost"`
	}
)

// Aggregate folds entries into per-category totals. Every entry is visited
// exactly once, in order; categories appear in the result in the order they
// are first seen. The input is not modified.
func Aggregate(entries []Entry) Totals {
	totals := make(Totals, 0)
	index := make(map[string]int)
	for _, e := range entries {
		totals = totals.add(index, e)
	}
	return totals
}

// Add returns the totals with one more entry folded in. It is the
// incremental form of Aggregate; the receiver is left untouched.
func (t Totals) Add(e Entry) Totals {
	out := make(Totals, len(t), len(t)+1)
	copy(out, t)
	index := make(map[string]int, len(t))
	for i, row := range out {
		index[row.Category] = i
	}
	return out.add(index, e)
}

func (t Totals) add(index map[string]int, e Entry) Totals {
	energy := e.EnergyKWh()
	cost := energy * e.PricePerUnit

	i, ok := index[e.Category]
	if !ok {
		i = len(t)
		index[e.Category] = i
		t = append(t, CategoryTotal{Category: e.Category})
	}
	t[i].EnergyKWh += energy
	t[i].Cost += cost
	return t
}

// Get returns the totals for a category.
func (t Totals) Get(category string) (CategoryTotal, bool) {
	for _, row := range t {
		if row.Category == category {
			return row, true
		}
	}
	return CategoryTotal{}, false
}

// Sum returns the energy and cost over all categories.
func (t Totals) Sum() (energyKWh, cost float64) {
	for _, row := range t {
		energyKWh += row.EnergyKWh
		cost += row.Cost
	}
	return energyKWh, cost
}

// Project converts totals into parallel label and value series.
func Project(t Totals) Series {
	s := Series{
		Labels: make([]string, 0, len(t)),
		Energy: make([]float64, 0, len(t)),
		Cost:   make([]float64, 0, len(t)),
	}
	for _, row := range t {
		s.Labels = append(s.Labels, row.Category)
		s.Energy = append(s.Energy, row.EnergyKWh)
		s.Cost = append(s.Cost, row.Cost)
	}
	return s
}

// Len returns the number of categories in the series.
func (s Series) Len() int {
	return len(s.Labels)
}
