package queryir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentq/internal/ir"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		input    string
		expected Operator
	}{
		{"=", OpEq},
		{"in", OpIn},
		{"not in", OpNotIn},
		{"Not  Between", OpNotBetween},
		{" is null ", OpIsNull},
		{"is not null", OpIsNotNull},
		{"like", OpLike},
		{"NOT LIKE", OpNotLike},
		{">=", OpGte},
		{"<>", OpLtGt},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			op, err := ParseOperator(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, op)
		})
	}
}

func TestParseOperatorRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "==", "GLOB", "; DROP TABLE x", "IN IN"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseOperator(input)
			assert.Error(t, err)
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("desc")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)
	assert.Equal(t, "DESC", d.String())

	d, err = ParseDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestNewPredicate(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		op       Operator
		value    any
		expected Predicate
	}{
		{"equals", "draft", OpEq, false, Compare{Field: "draft", Op: OpEq, Value: ir.IRBool(false)}},
		{"greater", "order", OpGt, 3, Compare{Field: "order", Op: OpGt, Value: ir.IRInt(3)}},
		{"in", "tag", OpIn, []string{"a", "b"}, In{Field: "tag", Values: ir.IRArray{ir.IRString("a"), ir.IRString("b")}}},
		{"not in", "tag", OpNotIn, []any{"a"}, In{Field: "tag", Values: ir.IRArray{ir.IRString("a")}, Negate: true}},
		{"between", "date", OpBetween, []string{"2024-01-01", "2024-12-31"}, Between{Field: "date", Lower: ir.IRString("2024-01-01"), Upper: ir.IRString("2024-12-31")}},
		{"not between", "n", OpNotBetween, [2]int{1, 5}, Between{Field: "n", Lower: ir.IRInt(1), Upper: ir.IRInt(5), Negate: true}},
		{"is null ignores value", "deleted", OpIsNull, "ignored", IsNull{Field: "deleted"}},
		{"is not null", "deleted", OpIsNotNull, nil, IsNull{Field: "deleted", Negate: true}},
		{"like", "title", OpLike, "%intro%", Like{Field: "title", Pattern: ir.IRString("%intro%")}},
		{"not like", "title", OpNotLike, "a%", Like{Field: "title", Pattern: ir.IRString("a%"), Negate: true}},
		{"float literal", "score", OpGt, 2.5, Compare{Field: "score", Op: OpGt, Value: ir.IRFloat(2.5)}},
		{"float between", "score", OpBetween, []float64{1.5, 3.5}, Between{Field: "score", Lower: ir.IRFloat(1.5), Upper: ir.IRFloat(3.5)}},
		{"float in", "score", OpIn, []float64{1.5}, In{Field: "score", Values: ir.IRArray{ir.IRFloat(1.5)}}},
		{"like int", "code", OpLike, 5, Like{Field: "code", Pattern: ir.IRString("5")}},
		{"like float", "code", OpLike, 2.5, Like{Field: "code", Pattern: ir.IRString("2.5")}},
		{"not like bool", "flag", OpNotLike, true, Like{Field: "flag", Pattern: ir.IRString("true"), Negate: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPredicate(tt.field, tt.op, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.field, p.Column())
		})
	}
}

func TestNewPredicateArity(t *testing.T) {
	tests := []struct {
		name  string
		op    Operator
		value any
	}{
		{"in with scalar", OpIn, "a"},
		{"in with empty", OpIn, []string{}},
		{"not in with nil", OpNotIn, nil},
		{"between with one", OpBetween, []int{1}},
		{"between with three", OpBetween, []int{1, 2, 3}},
		{"between with scalar", OpNotBetween, 4},
		{"NaN literal", OpEq, math.NaN()},
		{"infinity in sequence", OpIn, []float64{1.5, math.Inf(1)}},
		{"unknown operator", Operator("GLOB"), "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPredicate("f", tt.op, tt.value)
			assert.Error(t, err)
		})
	}
}

func TestNewPredicateLikeRejectsComposites(t *testing.T) {
	for name, value := range map[string]any{
		"null":  nil,
		"slice": []string{"a%"},
		"map":   map[string]any{"k": "a%"},
	} {
		t.Run(name, func(t *testing.T) {
			p, err := NewPredicate("title", OpLike, value)
			if err == nil {
				err = ValidatePredicate(p)
			}
			require.Error(t, err)
		})
	}
}

func TestQueryTypesSealed(t *testing.T) {
	var q Query = Select{From: "docs"}
	switch q.(type) {
	case Select:
	case Count:
		t.Fatal("unexpected type")
	}

	var p Predicate = IsNull{Field: "x"}
	assert.Equal(t, "x", p.Column())
}
