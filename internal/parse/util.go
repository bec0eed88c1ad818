package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nonDigitPrefix = regexp.MustCompile(`^\D*`)

// ParseTime parses a duration given as "HH:MM:SS", "MM:SS" or a bare
// number of seconds.
func ParseTime(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", value)
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", value, err)
		}
		total = total*60 + n
	}
	if total < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return total, nil
}

// longestSubstr returns the longest substring common to all strings.
// The shortest input serves as the reference; every candidate slice is
// tested against all inputs. Quadratic in the reference length, which
// is fine for episode titles.
func longestSubstr(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	reference := strs[0]
	for _, s := range strs[1:] {
		if len(s) < len(reference) {
			reference = s
		}
	}

	substr := ""
	ref := []rune(reference)
	for i := 0; i < len(ref); i++ {
		for j := i + len([]rune(substr)) + 1; j <= len(ref); j++ {
			candidate := string(ref[i:j])
			all := true
			for _, s := range strs {
				if !strings.Contains(s, candidate) {
					all = false
					break
				}
			}
			if all {
				substr = candidate
			}
		}
	}
	return substr
}

// CommonTitle computes the common title prefix of a feed: the longest
// common substring of all non-empty episode titles, truncated at the
// first digit. Common titles shorter than two characters are discarded
// (they would strip too aggressively).
func CommonTitle(titles []string) string {
	var nonEmpty []string
	for _, t := range titles {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	common := longestSubstr(nonEmpty)
	common = nonDigitPrefix.FindString(common)
	if len(strings.TrimSpace(common)) < 2 {
		return ""
	}
	return common
}
