package docx

import (
	"regexp"
	"sort"
	"strings"
)

// repairPlaceholders removes the XML markup Word inserts inside template tags.
// Word splits text into runs at arbitrary points (spell check, edits, style
// changes), so "{{ nombre }}" may reach us as "{{</w:t></w:r><w:r><w:t>nombre }}".
// Markup between the two opening or closing characters and inside the tag body
// is dropped; everything outside tags is copied unchanged. An unterminated tag
// is copied verbatim.
func repairPlaceholders(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); {
		if src[i] != '{' {
			b.WriteByte(src[i])
			i++
			continue
		}

		j := skipMarkup(src, i+1)
		if j >= len(src) || (src[j] != '{' && src[j] != '%') {
			b.WriteByte('{')
			i++
			continue
		}

		body, end, ok := readTag(src, j)
		if !ok {
			b.WriteString(src[i:])
			break
		}
		b.WriteString(body)
		i = end
	}
	return b.String()
}

// readTag reads a tag whose second opening character is at src[open]. It
// returns the tag with markup stripped and the index just past it.
func readTag(src string, open int) (string, int, bool) {
	closer := byte('}')
	if src[open] == '%' {
		closer = '%'
	}

	var tag strings.Builder
	tag.WriteByte('{')
	tag.WriteByte(src[open])

	for k := open + 1; k < len(src); {
		switch {
		case src[k] == '<':
			gt := strings.IndexByte(src[k:], '>')
			if gt < 0 {
				return "", 0, false
			}
			k += gt + 1
		case src[k] == closer:
			m := skipMarkup(src, k+1)
			if m < len(src) && src[m] == '}' {
				tag.WriteByte(closer)
				tag.WriteByte('}')
				return tag.String(), m + 1, true
			}
			tag.WriteByte(src[k])
			k++
		default:
			tag.WriteByte(src[k])
			k++
		}
	}
	return "", 0, false
}

// skipMarkup returns the first index at or after i that is not inside an XML
// tag.
func skipMarkup(src string, i int) int {
	for i < len(src) && src[i] == '<' {
		gt := strings.IndexByte(src[i:], '>')
		if gt < 0 {
			return len(src)
		}
		i += gt + 1
	}
	return i
}

var variablePattern = regexp.MustCompile(`\{\{-?\s*([A-Za-z_][A-Za-z0-9_]*)`)

var (
	bindingTagPattern = regexp.MustCompile(`\{%-?\s*(for|with|set)\s+(.*?)\s*-?%\}`)
	forTargetsPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\s*,\s*([A-Za-z_][A-Za-z0-9_]*))?\s+in\b`)
	assignPattern     = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=[^=]`)
	aliasPattern      = regexp.MustCompile(`\bas\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// boundVariables lists names the template binds itself through for, with and
// set tags. Scope is ignored: a name bound anywhere counts as bound everywhere.
func boundVariables(src string) map[string]struct{} {
	bound := map[string]struct{}{}
	for _, tag := range bindingTagPattern.FindAllStringSubmatch(src, -1) {
		body := tag[2]
		switch tag[1] {
		case "for":
			m := forTargetsPattern.FindStringSubmatch(body)
			if m == nil {
				continue
			}
			bound["forloop"] = struct{}{}
			for _, name := range m[1:] {
				if name != "" {
					bound[name] = struct{}{}
				}
			}
		case "with", "set":
			for _, m := range assignPattern.FindAllStringSubmatch(body+" ", -1) {
				bound[m[1]] = struct{}{}
			}
			for _, m := range aliasPattern.FindAllStringSubmatch(body, -1) {
				bound[m[1]] = struct{}{}
			}
		}
	}
	return bound
}

// referencedVariables lists the distinct context names used in {{ }} tags,
// sorted. Names bound by the template itself are left out.
func referencedVariables(src string) []string {
	bound := boundVariables(src)
	seen := map[string]struct{}{}
	for _, m := range variablePattern.FindAllStringSubmatch(src, -1) {
		if _, ok := bound[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
