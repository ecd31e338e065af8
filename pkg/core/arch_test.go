package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// coreImports returns the imports of every non-test file in pkg/core.
func coreImports(t *testing.T) map[string][]string {
	t.Helper()
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read core directory: %v", err)
	}

	fset := token.NewFileSet()
	out := make(map[string][]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(".", name), nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", name, err)
			continue
		}
		for _, imp := range f.Imports {
			out[name] = append(out[name], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}

// TestCoreImportsOnly keeps pkg/core a leaf: stdlib plus pkg/rangeset.
func TestCoreImportsOnly(t *testing.T) {
	allowed := map[string]bool{
		"github.com/leapstack-labs/gridview/pkg/rangeset": true,
	}

	for file, imports := range coreImports(t) {
		for _, imp := range imports {
			stdlib := !strings.Contains(strings.SplitN(imp, "/", 2)[0], ".")
			if stdlib || allowed[imp] {
				continue
			}
			t.Errorf("%s imports %s; pkg/core may only import stdlib and pkg/rangeset", file, imp)
		}
	}
}

func TestCoreDoesNotImportInternal(t *testing.T) {
	for file, imports := range coreImports(t) {
		for _, imp := range imports {
			if strings.Contains(imp, "/internal/") {
				t.Errorf("%s imports internal package %s", file, imp)
			}
		}
	}
}
