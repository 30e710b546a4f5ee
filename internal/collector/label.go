package collector

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label turns a field name into its display label: underscores become spaces
// and every word is title-cased ("fecha_observacion" -> "Fecha Observacion").
func Label(name string) string {
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.Spanish).String(strings.ReplaceAll(name, "_", " "))
}

// Labels maps Label over names, preserving order.
func Labels(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Label(n)
	}
	return out
}
