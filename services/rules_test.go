package services

import (
	"testing"
)

func intPtr(v int) *int { return &v }

func TestRuleExprValidate(t *testing.T) {
	valid := []RuleExpr{
		{Op: "contains", Value: "binary tree"},
		{Op: "marks_between", Min: intPtr(3)},
		{Op: "marks_between", Max: intPtr(14)},
		{Op: "all", Args: []RuleExpr{{Op: "contains", Value: "x"}}},
		{Op: "any", Args: []RuleExpr{{Op: "contains", Value: "x"}, {Op: "contains", Value: "y"}}},
		{Op: "not", Args: []RuleExpr{{Op: "contains", Value: "x"}}},
	}
	for i, expr := range valid {
		if err := expr.Validate(); err != nil {
			t.Errorf("valid[%d]: unexpected error: %v", i, err)
		}
	}

	invalid := []RuleExpr{
		{Op: "contains", Value: "  "},
		{Op: "marks_between"},
		{Op: "all"},
		{Op: "any"},
		{Op: "not"},
		{Op: "not", Args: []RuleExpr{{Op: "contains", Value: "x"}, {Op: "contains", Value: "y"}}},
		{Op: "eval"},
		{Op: "all", Args: []RuleExpr{{Op: "bogus"}}}, // nested error surfaces
	}
	for i, expr := range invalid {
		if err := expr.Validate(); err == nil {
			t.Errorf("invalid[%d]: expected validation error for op %q", i, expr.Op)
		}
	}
}

func TestRuleExprEval(t *testing.T) {
	ctx := RuleContext{QuestionText: "Explain the Disaster Management Cycle", Marks: 14}

	tests := []struct {
		name string
		expr RuleExpr
		want bool
	}{
		{"contains case-insensitive", RuleExpr{Op: "contains", Value: "disaster management"}, true},
		{"contains miss", RuleExpr{Op: "contains", Value: "flood routing"}, false},
		{"marks in range", RuleExpr{Op: "marks_between", Min: intPtr(10), Max: intPtr(14)}, true},
		{"marks below min", RuleExpr{Op: "marks_between", Min: intPtr(15)}, false},
		{"marks above max", RuleExpr{Op: "marks_between", Max: intPtr(3)}, false},
		{"all true", RuleExpr{Op: "all", Args: []RuleExpr{
			{Op: "contains", Value: "cycle"},
			{Op: "marks_between", Min: intPtr(10)},
		}}, true},
		{"all short-circuits false", RuleExpr{Op: "all", Args: []RuleExpr{
			{Op: "contains", Value: "cycle"},
			{Op: "contains", Value: "missing"},
		}}, false},
		{"any one true", RuleExpr{Op: "any", Args: []RuleExpr{
			{Op: "contains", Value: "missing"},
			{Op: "contains", Value: "cycle"},
		}}, true},
		{"not inverts", RuleExpr{Op: "not", Args: []RuleExpr{
			{Op: "contains", Value: "missing"},
		}}, true},
		{"unknown op is false", RuleExpr{Op: "regex", Value: ".*"}, false},
	}
	for _, tt := range tests {
		if got := tt.expr.Eval(ctx); got != tt.want {
			t.Errorf("%s: Eval = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseRuleExpr(t *testing.T) {
	expr, err := ParseRuleExpr([]byte(`{"op":"all","args":[{"op":"contains","value":"ndma"},{"op":"marks_between","min":10}]}`))
	if err != nil {
		t.Fatalf("ParseRuleExpr failed: %v", err)
	}
	if err := expr.Validate(); err != nil {
		t.Fatalf("parsed expression invalid: %v", err)
	}
	if !expr.Eval(RuleContext{QuestionText: "Describe the NDMA structure", Marks: 14}) {
		t.Errorf("expected parsed rule to match")
	}

	if _, err := ParseRuleExpr(nil); err == nil {
		t.Errorf("expected error for empty input")
	}
	if _, err := ParseRuleExpr([]byte("{not json")); err == nil {
		t.Errorf("expected error for malformed input")
	}
}
