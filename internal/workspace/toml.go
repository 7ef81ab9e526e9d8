package workspace

import (
	"regexp"
	"strings"
)

var tomlHeader = regexp.MustCompile(`(?m)^\s*\[\[?\s*([^\]\s]+)\s*\]\]?\s*(?:#.*)?$`)

// tomlTable returns the byte span of the body of table name, from the end of its header line up to the
// next header. ok is false when the table is not present.
func tomlTable(contents, name string) (start, end int, ok bool) {
	headers := tomlHeader.FindAllStringSubmatchIndex(contents, -1)

	for i, loc := range headers {
		if contents[loc[2]:loc[3]] != name {
			continue
		}

		start, end = loc[1], len(contents)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}

		return start, end, true
	}

	return 0, 0, false
}

// replaceInTable is replaceFirst restricted to the body of a TOML table.
func replaceInTable(contents, table string, re *regexp.Regexp, value string) (updated, old string, ok bool) {
	start, end, found := tomlTable(contents, table)
	if !found {
		return contents, "", false
	}

	body, old, ok := replaceFirst(contents[start:end], re, value)
	if !ok {
		return contents, "", false
	}

	return contents[:start] + body + contents[end:], old, true
}

// replaceAllInTables replaces the value group of every match of re inside each of the given tables and
// reports whether anything matched.
func replaceAllInTables(contents string, tables []string, re *regexp.Regexp, value func(old string) string) (string, bool) {
	changed := false

	for _, table := range tables {
		start, end, found := tomlTable(contents, table)
		if !found {
			continue
		}

		body := contents[start:end]

		var sb strings.Builder

		last := 0

		for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
			sb.WriteString(body[last:loc[4]])
			sb.WriteString(value(body[loc[4]:loc[5]]))

			last = loc[5]
			changed = true
		}

		sb.WriteString(body[last:])

		contents = contents[:start] + sb.String() + contents[end:]
	}

	return contents, changed
}

// tomlVersionLine matches `version = "x"` at the start of a line.
var tomlVersionLine = regexp.MustCompile(`(?m)^(\s*version\s*=\s*["'])([^"']*)(["'])`)
