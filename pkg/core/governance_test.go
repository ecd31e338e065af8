//go:build governance

package core_test

import (
	"go/types"
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/gridview"

// singleUse lists core types that may legitimately have one consumer.
var singleUse = map[string]string{
	"RemoteTable":    "implemented once, consumed by the viewport controller",
	"ViewportHandle": "implemented once, consumed by the viewport controller",
	"StateStore":     "implemented by internal/state",
	"StateSummary":   "returned by StateStore only",
	"Rows":           "adapter query results",
}

// TestGovernance_CoreCohesion reports exported pkg/core types used by a
// single package. Those belong in that package. Run with -tags governance.
func TestGovernance_CoreCohesion(t *testing.T) {
	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	idx := slices.IndexFunc(pkgs, func(p *packages.Package) bool { return p.PkgPath == modulePath+"/pkg/core" })
	if idx < 0 {
		t.Fatal("Could not find pkg/core")
	}
	core := pkgs[idx]

	users := make(map[types.Object]map[string]bool)
	for _, name := range core.Types.Scope().Names() {
		if obj := core.Types.Scope().Lookup(name); obj.Exported() {
			users[obj] = make(map[string]bool)
		}
	}

	for _, p := range pkgs {
		if p == core || p.TypesInfo == nil || strings.HasSuffix(p.PkgPath, "_test") {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if set, ok := users[obj]; ok {
				set[strings.TrimPrefix(p.PkgPath, modulePath+"/")] = true
			}
		}
	}

	for obj, importers := range users {
		name := obj.Name()
		if _, ok := singleUse[name]; ok {
			continue
		}
		switch len(importers) {
		case 0:
			t.Logf("WARNING: unused core type %s", name)
		case 1:
			for user := range importers {
				t.Errorf("core.%s is used only by %s; move it there", name, user)
			}
		}
	}
}
