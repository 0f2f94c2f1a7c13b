package storage

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxNameLength = 255

var (
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	dotRuns         = regexp.MustCompile(`\.{2,}`)
	separators      = strings.NewReplacer("/", " ", `\`, " ")
)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Sanitize reduces raw to a bare ASCII filename made of letters, digits,
// '_', '-' and single dots, with no leading or trailing '.' or '_'. The
// result never contains a path separator or "..", so joining it to a
// directory cannot leave that directory. It returns "" when nothing usable
// is left.
func Sanitize(raw string) string {
	decomposed := norm.NFKD.String(raw)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}

	s := separators.Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = disallowedChars.ReplaceAllString(s, "")
	s = dotRuns.ReplaceAllString(s, ".")
	s = strings.Trim(s, "._")

	if s == "" {
		return ""
	}

	stem := strings.ToUpper(strings.SplitN(s, ".", 2)[0])
	if _, reserved := windowsDeviceNames[stem]; reserved {
		s = "file_" + s
	}

	return truncateName(s)
}

func truncateName(s string) string {
	if len(s) <= maxNameLength {
		return s
	}
	ext := filepath.Ext(s)
	if len(ext) >= maxNameLength/2 {
		return strings.TrimRight(s[:maxNameLength], "._")
	}
	base := strings.TrimRight(s[:maxNameLength-len(ext)], "._")
	if base == "" {
		return strings.TrimLeft(ext, ".")
	}
	return base + ext
}
