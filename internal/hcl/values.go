package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/nativebind/internal/ctxlog"
)

// isExprDefined checks if an HCL expression was actually present in the
// source. For an omitted optional attribute gohcl assigns a synthetic
// expression with a zero-width range, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Expression is nil, considering it undefined.", "attribute", attrName)
		return false
	}

	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	logger.Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)

	return isDefined
}

// stringValue evaluates a literal expression as a string. Numbers are
// accepted and printed in their shortest form, so `min_version = 13` and
// `min_version = "13"` mean the same.
func stringValue(expr hcl.Expression) (string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() {
		return "", fmt.Errorf("value is required")
	}
	if !val.IsWhollyKnown() {
		return "", fmt.Errorf("value must be a literal")
	}
	conv, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("expected a string or number, got %s", val.Type().FriendlyName())
	}
	return conv.AsString(), nil
}

// stringMap evaluates an object or map literal of strings.
func stringMap(expr hcl.Expression) (map[string]string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	conv, err := convert.Convert(val, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a map of strings, got %s", val.Type().FriendlyName())
	}
	var out map[string]string
	if err := gocty.FromCtyValue(conv, &out); err != nil {
		return nil, err
	}
	return out, nil
}
