package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

func TestValidateLines_NoViolations(t *testing.T) {
	lines := []LineInput{
		{ProductID: uuid.New(), ProductName: "Free Sample", Quantity: 1, UnitPriceCents: 0},
		{ProductID: uuid.New(), ProductName: "Coffee Beans", Quantity: 3, UnitPriceCents: 1299},
	}
	if err := ValidateLines(lines); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := Subtotal(lines); got != 3897 {
		t.Fatalf("expected subtotal 3897, got %d", got)
	}
}

func TestValidateLines_Empty(t *testing.T) {
	err := ValidateLines(nil)
	if err == nil {
		t.Fatal("expected error for empty cart")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", pkgerrors.As(err).Code())
	}
}

func TestValidateLines_Violations(t *testing.T) {
	violationLines := []LineInput{
		{ProductID: uuid.New(), ProductName: "Zero Quantity", Quantity: 0, UnitPriceCents: 100},
		{ProductID: uuid.New(), ProductName: "Negative Price", Quantity: 1, UnitPriceCents: -5},
	}
	err := ValidateLines(append(violationLines, LineInput{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: 10}))
	if err == nil {
		t.Fatal("expected error for invalid lines")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %T", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]LineViolationDetail)
	if !ok {
		t.Fatalf("expected violations slice, got %T", details["violations"])
	}
	if len(violations) != len(violationLines) {
		t.Fatalf("expected %d violations, got %d", len(violationLines), len(violations))
	}
	for i, violation := range violations {
		if violation.ProductID != violationLines[i].ProductID {
			t.Fatalf("expected product id %s, got %s", violationLines[i].ProductID, violation.ProductID)
		}
	}
}
