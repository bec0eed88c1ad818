package endpoints

import (
	"sort"
	"strconv"
	"strings"
)

type acceptOption struct {
	value string
	q     float64
}

// parseAcceptHeader parses a header list with q parameters, such as
// "text/html;q=0.8, application/json" and returns the options sorted by
// descending quality, plus the default quality given by a "*" entry.
func parseAcceptHeader(header string) ([]acceptOption, float64) {
	defaultQ := 1.0
	var options []acceptOption

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		value, params, _ := strings.Cut(part, ";")
		value = strings.TrimSpace(value)

		q := 1.0
		for _, param := range strings.Split(params, ";") {
			key, raw, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || strings.TrimSpace(key) != "q" {
				continue
			}
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				q = parsed
			}
		}

		if value == "*" || value == "*/*" {
			defaultQ = q
			continue
		}
		options = append(options, acceptOption{value: value, q: q})
	}

	sort.SliceStable(options, func(i, j int) bool { return options[i].q > options[j].q })
	return options, defaultQ
}

// selectMatchingOption picks the best supported content type for an
// Accept header. When nothing matches explicitly, the first supported
// value is used unless the header's wildcard quality forbids it.
func selectMatchingOption(supported []string, header string) string {
	options, defaultQ := parseAcceptHeader(header)

	for _, opt := range options {
		if opt.q <= 0 {
			continue
		}
		for _, s := range supported {
			if opt.value == s {
				return s
			}
		}
	}

	if defaultQ > 0 {
		return supported[0]
	}
	return ""
}
