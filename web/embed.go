// Package web holds the page templates and browser assets.
package web

import "embed"

// TemplatesFS holds the page and its HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the chart renderer.
//
//go:embed static/*
var StaticFS embed.FS
