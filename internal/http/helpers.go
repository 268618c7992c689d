package http

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"energycalc/internal/core"
)

var errTemplatesNotLoaded = errors.New("templates not loaded")

// draftFieldOrder is the order in which posted draft fields are applied.
var draftFieldOrder = []string{
	core.FieldCategory,
	core.FieldPower,
	core.FieldHours,
	core.FieldPricePerUnit,
}

// postedFields returns the known form fields present in the request body.
func postedFields(r *http.Request) map[string]string {
	out := make(map[string]string, len(draftFieldOrder))
	for _, field := range draftFieldOrder {
		if _, ok := r.PostForm[field]; ok {
			out[field] = sanitizeInput(r.PostForm.Get(field))
		}
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// renderTemplates executes the named templates into one buffer so a failing
// template never leaves a half-written response.
func (s *Server) renderTemplates(data any, names ...string) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	for _, name := range names {
		if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
