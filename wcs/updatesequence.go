package wcs

import (
	"strconv"
	"strings"
	"time"
)

var updateSequenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseSequenceTime(s string) (time.Time, bool) {
	for _, layout := range updateSequenceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareUpdateSequence orders two update sequence values. Integers and
// timestamps compare by value, anything else lexically.
func compareUpdateSequence(a, b string) int {
	ia, errA := strconv.ParseInt(a, 10, 64)
	ib, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	}
	if ta, ok := parseSequenceTime(a); ok {
		if tb, ok := parseSequenceTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}

// CheckUpdateSequence validates a client supplied update sequence
// against the current one. An empty value on either side always passes.
func CheckUpdateSequence(requested, current string) error {
	if requested == "" || current == "" {
		return nil
	}
	switch compareUpdateSequence(requested, current) {
	case 0:
		return NewException(CurrentUpdateSequence, "updatesequence",
			"UPDATESEQUENCE parameter (%s) is equal to server (%s)", requested, current)
	case 1:
		return NewException(InvalidUpdateSequence, "updatesequence",
			"UPDATESEQUENCE parameter (%s) is higher than server (%s)", requested, current)
	}
	return nil
}
