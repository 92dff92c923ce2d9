package services

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// RuleExpr is one node of a closed classification-rule expression tree.
// Curriculum authors express rules as data; a recursive evaluator interprets
// them. No rule can ever execute code.
//
// Node kinds:
//
//	{"op": "contains", "value": "binary tree"}
//	{"op": "marks_between", "min": 3, "max": 14}
//	{"op": "all", "args": [...]}   - logical AND
//	{"op": "any", "args": [...]}   - logical OR
//	{"op": "not", "args": [expr]}
type RuleExpr struct {
	Op    string     `json:"op"`
	Value string     `json:"value,omitempty"`
	Min   *int       `json:"min,omitempty"`
	Max   *int       `json:"max,omitempty"`
	Args  []RuleExpr `json:"args,omitempty"`
}

// RuleContext carries the question facts a rule can inspect
type RuleContext struct {
	QuestionText string
	Marks        int
}

// ParseRuleExpr decodes a JSON-encoded rule expression
func ParseRuleExpr(data []byte) (*RuleExpr, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty rule expression")
	}
	var expr RuleExpr
	if err := json.Unmarshal(data, &expr); err != nil {
		return nil, fmt.Errorf("invalid rule expression: %w", err)
	}
	return &expr, nil
}

// Validate checks the expression tree for structural problems before it is
// saved, so authors get errors at write time rather than silent false
// matches at classification time.
func (e *RuleExpr) Validate() error {
	switch e.Op {
	case "contains":
		if strings.TrimSpace(e.Value) == "" {
			return fmt.Errorf("contains: value must be non-empty")
		}
	case "marks_between":
		if e.Min == nil && e.Max == nil {
			return fmt.Errorf("marks_between: at least one of min/max required")
		}
	case "all", "any":
		if len(e.Args) == 0 {
			return fmt.Errorf("%s: requires at least one argument", e.Op)
		}
		for i := range e.Args {
			if err := e.Args[i].Validate(); err != nil {
				return err
			}
		}
	case "not":
		if len(e.Args) != 1 {
			return fmt.Errorf("not: requires exactly one argument")
		}
		return e.Args[0].Validate()
	default:
		return fmt.Errorf("unknown rule op %q", e.Op)
	}
	return nil
}

// Eval interprets the expression against a question. Unknown node kinds
// evaluate to false with a logged warning rather than failing the
// classification pass.
func (e *RuleExpr) Eval(ctx RuleContext) bool {
	switch e.Op {
	case "contains":
		return strings.Contains(strings.ToLower(ctx.QuestionText), strings.ToLower(e.Value))
	case "marks_between":
		if e.Min != nil && ctx.Marks < *e.Min {
			return false
		}
		if e.Max != nil && ctx.Marks > *e.Max {
			return false
		}
		return true
	case "all":
		for i := range e.Args {
			if !e.Args[i].Eval(ctx) {
				return false
			}
		}
		return len(e.Args) > 0
	case "any":
		for i := range e.Args {
			if e.Args[i].Eval(ctx) {
				return true
			}
		}
		return false
	case "not":
		if len(e.Args) != 1 {
			return false
		}
		return !e.Args[0].Eval(ctx)
	default:
		log.Printf("RuleExpr: unknown op %q, evaluating to false", e.Op)
		return false
	}
}
