package main

import "testing"

func TestDTypeCommandAcceptsUsageMarkup(t *testing.T) {
	if err := handleDTypeCommand([]string{"float32", "complex_float64, 4"}); err != nil {
		t.Fatalf("dtype: %v", err)
	}
}

func TestDTypeCommandRejectsBracketMarkup(t *testing.T) {
	if err := handleDTypeCommand([]string{"complex_float64[4]"}); err == nil {
		t.Error("expected error for bracket markup")
	}
}

func TestDTypeCommandNeedsMarkup(t *testing.T) {
	if err := handleDTypeCommand(nil); err == nil {
		t.Error("expected error without arguments")
	}
}
