// Package repair recovers typed structures from free-form model output.
// Model text is frequently HTML-escaped, fenced, or wrapped in prose; this
// package either extracts a valid JSON object from it or falls back to a
// deterministic synthetic result built from inputs known before generation.
package repair

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
)

const fence = "```"

// Fallback describes the schema-specific synthetic decision used when
// extraction fails. Fields must be populated from data the caller already had
// before the generation call, so the fallback is never empty.
type Fallback struct {
	Kind       string
	Fields     map[string]any
	Confidence float64
}

// Repair extracts a key/value structure from raw model text. The second
// return reports whether any repair was needed: false only when the raw text
// parsed as-is. On extraction failure the result is the synthetic fallback
// with Source set to "fallback"; a raw parse error never escapes this package.
func Repair(raw string, fb Fallback) (domain.StructuredDecision, bool) {
	// Fast path: the whole text is already a JSON object.
	if fields, ok := parseObject(raw); ok {
		metrics.RepairsTotal.WithLabelValues("parsed").Inc()
		return fromModel(fb, fields), false
	}

	if span, ok := ExtractJSON(raw); ok {
		if fields, ok := parseObject(span); ok {
			metrics.RepairsTotal.WithLabelValues("repaired").Inc()
			return fromModel(fb, fields), true
		}
	}

	metrics.RepairsTotal.WithLabelValues("fallback").Inc()

	fields := make(map[string]any, len(fb.Fields))
	for k, v := range fb.Fields {
		fields[k] = v
	}
	return domain.StructuredDecision{
		Kind:       fb.Kind,
		Fields:     fields,
		Source:     domain.SourceFallback,
		Confidence: fb.Confidence,
	}, true
}

// ExtractJSON locates the most plausible JSON object span in raw text:
// HTML-unescape, then slice the first fenced block if one is present, then
// scan for the first brace-balanced object. Returns false when no candidate
// span exists.
func ExtractJSON(raw string) (string, bool) {
	s := html.UnescapeString(raw)

	if inner, ok := sliceFenced(s); ok {
		s = inner
	}

	return sliceBraced(s)
}

// sliceFenced returns the content between the first pair of fence markers.
// A language tag after the opening fence is skipped. An unterminated fence
// yields everything after the opening marker: the brace scan downstream
// handles trailing garbage.
func sliceFenced(s string) (string, bool) {
	start := strings.Index(s, fence)
	if start < 0 {
		return "", false
	}
	inner := s[start+len(fence):]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && isFenceTag(inner[:nl]) {
		inner = inner[nl+1:]
	}
	if end := strings.Index(inner, fence); end >= 0 {
		inner = inner[:end]
	}
	return inner, true
}

func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) > 10 {
		return false
	}
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// sliceBraced finds the first '{' and scans forward tracking nested-brace
// depth to its matching '}', ignoring braces inside string literals.
func sliceBraced(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func parseObject(s string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &fields); err != nil {
		return nil, false
	}
	if fields == nil {
		return nil, false
	}
	return fields, true
}

func fromModel(fb Fallback, fields map[string]any) domain.StructuredDecision {
	conf := fb.Confidence
	if v, ok := fields["confidence"].(float64); ok && v >= 0 && v <= 1 {
		conf = v
	}
	return domain.StructuredDecision{
		Kind:       fb.Kind,
		Fields:     fields,
		Source:     domain.SourceModel,
		Confidence: conf,
	}
}
