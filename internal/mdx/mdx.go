// Package mdx finds the lines of an MDX document that must never be edited:
// import/export statements, JSX components, and inline expressions.
package mdx

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var componentOpenRegex = regexp.MustCompile(`^\s*<([A-Z]\w*)`)

// binarySearchThreshold is the interval count above which IsProtected switches
// from a linear scan to binary search.
const binarySearchThreshold = 32

// Interval is an inclusive range of protected lines
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether line falls within the interval
func (iv Interval) Contains(line int) bool {
	return iv.Start <= line && line <= iv.End
}

// Regions is the set of protected intervals of one document
type Regions struct {
	intervals []Interval
	sorted    []Interval // by Start, for binary search
}

// openComponent is the single component the scanner tracks at a time.
// A different component opening inside it is not tracked separately.
type openComponent struct {
	name       string
	startLine  int
	braceCount int
	closeRegex *regexp.Regexp
}

// Detect scans text once, top to bottom, and returns its protected regions.
func Detect(text string) *Regions {
	r := &Regions{}
	if text == "" {
		return r
	}

	var open *openComponent
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(line)

		if open == nil {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
				r.add(lineNo, lineNo)
				continue
			}
			if m := componentOpenRegex.FindStringSubmatch(line); m != nil {
				name := m[1]
				if strings.HasSuffix(trimmed, "/>") || strings.Contains(line, "</"+name+">") {
					r.add(lineNo, lineNo)
					continue
				}
				open = &openComponent{
					name:       name,
					startLine:  lineNo,
					closeRegex: regexp.MustCompile(`^\s*</` + regexp.QuoteMeta(name) + `>`),
				}
				continue
			}
			if strings.Contains(line, "{") {
				r.add(lineNo, lineNo)
			}
			continue
		}

		open.braceCount += strings.Count(line, "{") - strings.Count(line, "}")
		if open.closeRegex.MatchString(line) {
			r.add(open.startLine, lineNo)
			open = nil
		}
	}

	// A component never closed protects through the end of the document.
	if open != nil {
		r.add(open.startLine, len(lines))
	}

	r.sorted = make([]Interval, len(r.intervals))
	copy(r.sorted, r.intervals)
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Start < r.sorted[j].Start })
	return r
}

// ForPath runs Detect only for formats that embed component markup.
// Every other document gets empty regions.
func ForPath(path, text string) *Regions {
	if !Supports(path) {
		return &Regions{}
	}
	return Detect(text)
}

// Supports reports whether path is a format with embedded components
func Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mdx")
}

func (r *Regions) add(start, end int) {
	r.intervals = append(r.intervals, Interval{Start: start, End: end})
}

// IsProtected reports whether line is inside any protected interval.
// A nil Regions protects nothing.
func (r *Regions) IsProtected(line int) bool {
	if r == nil {
		return false
	}
	if len(r.sorted) <= binarySearchThreshold {
		for _, iv := range r.intervals {
			if iv.Contains(line) {
				return true
			}
		}
		return false
	}

	// Intervals never overlap: a multi-line region swallows every line until it closes.
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].Start > line })
	return i > 0 && r.sorted[i-1].Contains(line)
}

// Intervals returns a copy of the protected intervals in detection order
func (r *Regions) Intervals() []Interval {
	if r == nil {
		return nil
	}
	out := make([]Interval, len(r.intervals))
	copy(out, r.intervals)
	return out
}

// Len returns the number of protected intervals
func (r *Regions) Len() int {
	if r == nil {
		return 0
	}
	return len(r.intervals)
}
