package domain

import (
	"sort"
	"strconv"
	"strings"
)

// ParseLeadingInt reads an optionally signed run of decimal digits at the
// start of s, ignoring leading whitespace and anything after the digits.
// "12.5" yields 12, "7kg" yields 7, "" and "abc" report ok=false.
func ParseLeadingInt(s string) (n int, ok bool) {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseAmount parses the amount field. Unparseable input becomes 0.
func ParseAmount(s string) int {
	n, _ := ParseLeadingInt(s)
	return n
}

// ParsePct parses the VAT percentage field, falling back to DefaultPct when
// the value is empty, unparseable or zero.
func ParsePct(s string) int {
	n, ok := ParseLeadingInt(s)
	if !ok || n == 0 {
		return DefaultPct
	}
	return n
}

// FileNameFromPath returns the last segment of a file input value such as
// `C:\fakepath\receipt.png`.
func FileNameFromPath(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// SortByDateDesc orders bills latest first. Dates are ISO strings so
// lexical order is chronological; ties keep their fetched order.
func SortByDateDesc(bills []Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].Date > bills[j].Date
	})
}
