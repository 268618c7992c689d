package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"energycalc/internal/catalog"
	"energycalc/internal/chart"
	"energycalc/internal/core"
)

var (
	reportFile    string
	reportCatalog string
	reportJSON    bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate a YAML list of devices offline",
	Long: `Reads a YAML list of devices (category, power, hours, pricePerUnit) and
prints per-category energy and cost, or the chart data with --json.
Values are coerced the same way the web form does.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFile, "file", "", "YAML file with the device list (- for stdin)")
	reportCmd.Flags().StringVar(&reportCatalog, "catalog", "", "category catalog file (default $CATALOG_FILE)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print chart data as JSON")
	_ = reportCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(reportCmd)
}

// reportEntry keeps raw scalars so they go through form coercion.
type reportEntry struct {
	Category     string `yaml:"category"`
	Power        string `yaml:"power"`
	Hours        string `yaml:"hours"`
	PricePerUnit string `yaml:"pricePerUnit"`
}

type reportOutput struct {
	chart.Set
	Totals    core.Totals `json:"totals"`
	EnergyKWh float64     `json:"energyKwh"`
	Cost      float64     `json:"cost"`
	Entries   int         `json:"entries"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportCatalog == "" {
		reportCatalog = os.Getenv("CATALOG_FILE")
	}
	cat, err := catalog.Load(reportCatalog)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	var in io.Reader = cmd.InOrStdin()
	if reportFile != "-" {
		f, err := os.Open(reportFile)
		if err != nil {
			return fmt.Errorf("opening report file: %w", err)
		}
		defer f.Close()
		in = f
	}

	entries, err := readEntries(in, cat)
	if err != nil {
		return err
	}
	if reportJSON {
		return writeReportJSON(cmd.OutOrStdout(), entries, cat)
	}
	writeReportTable(cmd.OutOrStdout(), entries, cat)
	return nil
}

// readEntries decodes the device list. Categories outside the catalog fall
// back to its default.
func readEntries(r io.Reader, cat *catalog.Catalog) ([]core.Entry, error) {
	var raw []reportEntry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}

	entries := make([]core.Entry, 0, len(raw))
	for _, re := range raw {
		d := core.DefaultDraft()
		d.Category = cat.Default
		if category := strings.TrimSpace(re.Category); cat.Contains(category) {
			d.Set(core.FieldCategory, category)
		}
		d.Set(core.FieldPower, re.Power)
		d.Set(core.FieldHours, re.Hours)
		d.Set(core.FieldPricePerUnit, re.PricePerUnit)
		entries = append(entries, d.Entry())
	}
	return entries, nil
}

func writeReportJSON(w io.Writer, entries []core.Entry, cat *catalog.Catalog) error {
	totals := core.Aggregate(entries)
	energy, cost := totals.Sum()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportOutput{
		Set:       chart.Build(core.Project(totals), cat.ChartPalettes()),
		Totals:    totals,
		EnergyKWh: energy,
		Cost:      cost,
		Entries:   len(entries),
	})
}

func writeReportTable(w io.Writer, entries []core.Entry, cat *catalog.Catalog) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No devices found")
		return
	}

	labels := make(map[string]string, len(cat.Options))
	for _, o := range cat.Options {
		labels[o.Value] = o.Label
	}

	totals := core.Aggregate(entries)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-14s  %10s  %10s\n", "Category", "kWh/day", "Cost/day")
	fmt.Fprintln(w, "----------------------------------------")
	for _, row := range totals {
		name := labels[row.Category]
		if name == "" {
			name = row.Category
		}
		fmt.Fprintf(w, "%-14s  %10.3f  %10.2f\n", name, row.EnergyKWh, row.Cost)
	}
	energy, cost := totals.Sum()
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Total: %.3f kWh, %.2f per day (%d devices)\n", energy, cost, len(entries))
}
