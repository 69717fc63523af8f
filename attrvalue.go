package rowtable

import (
	"strconv"

	"golang.org/x/exp/constraints"
)

// Number builds an AttrValue of kind N from any Go integer or
// floating-point value, formatting it the way DynamoDB numbers travel on
// the wire: as a decimal string. It spares callers constructing AttrValues
// by hand — fixtures, tests, ad-hoc diffs — from pre-formatting numeric
// attributes themselves the way N requires.
func Number[T constraints.Integer | constraints.Float](v T) AttrValue {
	return N(strconv.FormatFloat(float64(v), 'f', -1, 64))
}
