package proxygen

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TotalElements", "totalElements"},
		{"DType", "dType"},
		{"Name", "name"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Selector(tt.in); got != tt.want {
			t.Errorf("Selector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConstructorName(t *testing.T) {
	if got := ConstructorName("Counter"); got != "NewCounter" {
		t.Errorf("ConstructorName(Counter) = %q", got)
	}
	if got := ConstructorName("nativeInput"); got != "newNativeInput" {
		t.Errorf("ConstructorName(nativeInput) = %q", got)
	}
	if got := ProxyTypeName("nativeInput"); got != "nativeInputProxy" {
		t.Errorf("ProxyTypeName(nativeInput) = %q", got)
	}
}

func TestIntrospectKeepsSourceOrder(t *testing.T) {
	model, err := Introspect("testdata/sample", []string{"Counter"})
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	if model.Name != "sample" {
		t.Errorf("expected package name 'sample', got %q", model.Name)
	}
	if len(model.Interfaces) != 1 {
		t.Fatalf("expected 1 interface, got %d", len(model.Interfaces))
	}
	var names []string
	for _, m := range model.Interfaces[0].Methods {
		names = append(names, m.Name)
	}
	want := []string{"Add", "Reset", "Snapshot", "Touch", "Log"}
	if len(names) != len(want) {
		t.Fatalf("methods = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("methods = %v, want %v", names, want)
			break
		}
	}
	if m := model.Interfaces[0].Methods[4]; !m.Variadic {
		t.Error("Log: expected variadic")
	}
}

func TestIntrospectErrors(t *testing.T) {
	if _, err := Introspect("testdata/sample", []string{"Missing"}); err == nil {
		t.Error("expected error for a missing type")
	}
	if _, err := Introspect("testdata/sample", []string{"notAnInterface"}); err == nil {
		t.Error("expected error for a struct type")
	}
}

func TestGenerateUnsupportedResults(t *testing.T) {
	model, err := Introspect("testdata/sample", []string{"pair"})
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	if _, err := Generate(model); err == nil {
		t.Error("expected error for (int, int) results")
	}
}

func TestGenerateSample(t *testing.T) {
	model, err := Introspect("testdata/sample", []string{"Counter", "greeter"})
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	code, err := Generate(model)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	goldenFile := filepath.Join("testdata", "sample_gen.go.golden")
	updateGolden(t, goldenFile, string(code))
	compareGolden(t, goldenFile, string(code))
}

// The port package's wrappers are checked in; this keeps them in step
// with the interfaces they implement.
func TestPortWrappersAreCurrent(t *testing.T) {
	model, err := Introspect("../port", []string{"nativeInput", "nativeOutput", "nativeBuffer"})
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	code, err := Generate(model)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	goldenFile := filepath.Join("..", "port", "native_gen.go")
	updateGolden(t, goldenFile, string(code))
	compareGolden(t, goldenFile, string(code))
}

// Golden file helpers

func updateGolden(t *testing.T, path, content string) {
	t.Helper()
	if os.Getenv("UPDATE_GOLDEN") == "" {
		return
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating testdata dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("updating golden file: %v", err)
	}
}

func compareGolden(t *testing.T, path, got string) {
	t.Helper()
	expected, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Logf("Golden file %s does not exist. Run with UPDATE_GOLDEN=1 to create.", path)
		return
	}
	if err != nil {
		t.Fatalf("reading golden file: %v", err)
	}
	if string(expected) != got {
		t.Errorf("output differs from golden file %s.\nRun with UPDATE_GOLDEN=1 to update.", path)
	}
}
