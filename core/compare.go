package core

import (
	"strings"

	"github.com/tidwall/gjson"
)

// typeRank assigns every JSON value class a position in the canonical type
// order used for cross-type comparisons:
//
//	null < boolean < number < string < array < object
func typeRank(v gjson.Result) int {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return 0
	case v.Type == gjson.False || v.Type == gjson.True:
		return 1
	case v.Type == gjson.Number:
		return 2
	case v.Type == gjson.String:
		return 3
	case v.IsArray():
		return 4
	default:
		return 5
	}
}

// CompareValues imposes a deterministic total order over JSON values. Values
// of different classes order by canonical type rank; within a class numbers
// compare by value, strings and raw object text lexicographically, booleans
// false before true, and arrays element-wise with length as tie-break.
func CompareValues(a, b gjson.Result) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case 0:
		return 0
	case 1:
		return cmpBool(a.Bool(), b.Bool())
	case 2:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	case 3:
		return strings.Compare(a.Str, b.Str)
	case 4:
		ea, eb := a.Array(), b.Array()
		for i := 0; i < len(ea) && i < len(eb); i++ {
			if c := CompareValues(ea[i], eb[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ea), len(eb))
	default:
		return strings.Compare(a.Raw, b.Raw)
	}
}

// CompareSortKeys orders two materialized sort keys under the given sort
// specification. For compound keys both values are arrays walked in parallel
// against the per-field direction; in whole-key mode the values are compared
// directly under the first field's direction.
func CompareSortKeys(a, b gjson.Result, sort Sort, wholeKey bool) int {
	if wholeKey {
		return directed(CompareValues(a, b), sort[0].Desc)
	}

	ea, eb := a.Array(), b.Array()
	for i, field := range sort {
		var va, vb gjson.Result
		if i < len(ea) {
			va = ea[i]
		}
		if i < len(eb) {
			vb = eb[i]
		}
		if c := directed(CompareValues(va, vb), field.Desc); c != 0 {
			return c
		}
	}
	return 0
}

func directed(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
