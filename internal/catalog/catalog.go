// Package catalog defines the closed set of appliance categories offered by
// the entry form and the chart palettes.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"energycalc/internal/chart"
	"energycalc/internal/core"
)

var ErrUnknownDefault = errors.New("default category is not among the options")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

type (
	// Option is one selectable category.
	Option struct {
		Value string `yaml:"value" validate:"notblank,max=40"`
		Label string `yaml:"label" validate:"notblank,max=60"`
	}

	// PaletteSpec overrides chart colors.
	PaletteSpec struct {
		Pie []string `yaml:"pie" validate:"omitempty,dive,hexcolor"`
		Bar []string `yaml:"bar" validate:"omitempty,dive,hexcolor"`
	}

	// Catalog is the category selector configuration.
	Catalog struct {
		Default  string      `yaml:"default" validate:"notblank"`
		Options  []Option    `yaml:"options" validate:"min=1,unique=Value,dive"`
		Palettes PaletteSpec `yaml:"palettes"`
	}
)

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Default: core.DefaultCategory,
		Options: []Option{
			{Value: "light", Label: "Light"},
			{Value: "fan", Label: "Fan"},
			{Value: "tv", Label: "TV"},
			{Value: "ac", Label: "AC"},
		},
		Palettes: PaletteSpec{
			Pie: append([]string(nil), chart.DefaultPiePalette...),
			Bar: append([]string(nil), chart.DefaultBarPalette...),
		},
	}
}

// Load reads a YAML catalog. An empty path returns the built-in catalog.
// Palettes left out of the file fall back to the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if c.Default == "" {
		c.Default = core.DefaultCategory
	}
	if len(c.Palettes.Pie) == 0 {
		c.Palettes.Pie = append([]string(nil), chart.DefaultPiePalette...)
	}
	if len(c.Palettes.Bar) == 0 {
		c.Palettes.Bar = append([]string(nil), chart.DefaultBarPalette...)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks option values, colors and the default category.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	if !c.Contains(c.Default) {
		return fmt.Errorf("%w: %q", ErrUnknownDefault, c.Default)
	}
	return nil
}

// Contains reports whether value is a selectable category.
func (c *Catalog) Contains(value string) bool {
	for _, o := range c.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Values returns the option values in display order.
func (c *Catalog) Values() []string {
	out := make([]string, len(c.Options))
	for i, o := range c.Options {
		out[i] = o.Value
	}
	return out
}

// ChartPalettes returns the palettes in the form the chart builder takes.
func (c *Catalog) ChartPalettes() chart.Palettes {
	return chart.Palettes{Pie: c.Palettes.Pie, Bar: c.Palettes.Bar}
}
