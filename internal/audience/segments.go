package audience

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SegmentDef is a stored segment definition: an id plus a boolean filter
// tree evaluated per event.
type SegmentDef struct {
	ID     string     `json:"id"`
	Filter FilterNode `json:"filter"`
}

// FilterNode is one node of a segment filter tree. Exactly one of And, Or,
// or the Field comparison is populated.
type FilterNode struct {
	And []FilterNode `json:"and,omitempty"`
	Or  []FilterNode `json:"or,omitempty"`

	Field string `json:"field,omitempty"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Match evaluates the filter tree against one event. An empty node matches
// nothing.
func (n FilterNode) Match(ev Event) bool {
	switch {
	case len(n.And) > 0:
		for _, child := range n.And {
			if !child.Match(ev) {
				return false
			}
		}
		return true
	case len(n.Or) > 0:
		for _, child := range n.Or {
			if child.Match(ev) {
				return true
			}
		}
		return false
	case n.Field != "":
		return compare(eventField(ev, n.Field), n.Op, n.Value)
	default:
		return false
	}
}

// eventField looks up a field value, with the event's fixed columns taking
// precedence over the free-form field map.
func eventField(ev Event, name string) any {
	switch name {
	case "email":
		return ev.Email
	case "type":
		return ev.Type
	case "segment":
		return ev.Segment
	case "at":
		return ev.At.Format(time.RFC3339)
	}
	if ev.Fields == nil {
		return nil
	}
	return ev.Fields[name]
}

// compare applies one operator. Ordering operators work on numbers and on
// RFC 3339 dates; eq falls back to string equality.
func compare(have any, op string, want any) bool {
	if have == nil {
		return false
	}

	if hf, wf, ok := asFloats(have, want); ok {
		switch op {
		case "eq":
			return hf == wf
		case "gt":
			return hf > wf
		case "gte":
			return hf >= wf
		case "lt":
			return hf < wf
		case "lte":
			return hf <= wf
		}
		return false
	}

	if ht, wt, ok := asTimes(have, want); ok {
		switch op {
		case "eq":
			return ht.Equal(wt)
		case "gt":
			return ht.After(wt)
		case "gte":
			return !ht.Before(wt)
		case "lt":
			return ht.Before(wt)
		case "lte":
			return !ht.After(wt)
		}
		return false
	}

	if op == "eq" {
		return toString(have) == toString(want)
	}
	return false
}

func asFloats(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asTimes(a, b any) (time.Time, time.Time, bool) {
	at, aok := toTime(a)
	bt, bok := toTime(b)
	return at, bt, aok && bok
}

func toTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
