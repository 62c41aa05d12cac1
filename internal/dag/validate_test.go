package dag

import (
	"testing"

	"github.com/leapstack-labs/leapflow/internal/flow"
)

func TestValidate_WellFormedFlow(t *testing.T) {
	f := flow.New("ok")
	f.AddDataset(&flow.Dataset{Name: "in", Role: flow.RoleInput})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_out_1", Kind: flow.RecipeFilter,
		Inputs: []string{"in"}, Outputs: []string{"out"},
	})

	res := Validate(f)
	if !res.Valid {
		t.Fatalf("expected valid flow, errors: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestValidate_ReportsCycleWithoutThrowing(t *testing.T) {
	f := flow.New("cyclic")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleIntermediate})
	f.AddRecipe(&flow.Recipe{
		Name: "compute_a_1", Kind: flow.RecipeFilter,
		Inputs: []string{"a"}, Outputs: []string{"a"},
	})

	res := Validate(f)
	if res.Valid {
		t.Fatal("cyclic flow must be invalid")
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected a cycle error")
	}
}

func TestValidate_WarnsOnDisconnectedComponents(t *testing.T) {
	f := flow.New("islands")
	f.AddDataset(&flow.Dataset{Name: "a", Role: flow.RoleInput})
	f.AddDataset(&flow.Dataset{Name: "b", Role: flow.RoleInput})

	res := Validate(f)
	if !res.Valid {
		t.Fatalf("disconnected components must stay advisory, errors: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a disconnected-components warning")
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	f := flow.New("dup")
	f.Datasets = append(f.Datasets,
		&flow.Dataset{Name: "x", Role: flow.RoleInput},
		&flow.Dataset{Name: "x", Role: flow.RoleOutput},
	)

	res := Validate(f)
	if res.Valid {
		t.Fatal("duplicate dataset names must be invalid")
	}
}
