package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Funcs returns the helper functions available to every template.
//
//	pyvalue VALUE FALLBACK  Python-style literal: true/false become True/False,
//	                        null becomes FALLBACK, anything else is JSON-encoded
//	markdown TEXT           CommonMark rendered to HTML
//	title TEXT              title-cased text
func Funcs() template.FuncMap {
	return template.FuncMap{
		"pyvalue":  pyValue,
		"markdown": markdownToHTML,
		"title":    titleCase,
	}
}

func pyValue(value any, fallback string) (string, error) {
	switch v := value.(type) {
	case nil:
		return fallback, nil
	case bool:
		if v {
			return "True", nil
		}
		return "False", nil
	case json.Number:
		return v.String(), nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("pyvalue: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func markdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
