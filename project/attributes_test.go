package project

import (
	"encoding/json"
	"testing"

	"github.com/bakegraph/bake/attribute"
)

func TestEvaluateAttributesExpandsStringsAndListsOnly(t *testing.T) {
	p := &Project{ID: "foo"}
	binding := &DriverBinding{
		Driver: "c",
		RawJSON: json.RawMessage(`{
			"cflags": ["-O${LEVEL}", "-Wall"],
			"strip": true,
			"version": 2,
			"name": "lib${LEVEL}"
		}`),
	}

	expander := attribute.NewExpander(attribute.Scope{Vars: map[string]string{"LEVEL": "2"}})
	if err := EvaluateAttributes(p, binding, expander); err != nil {
		t.Fatal(err)
	}

	var cflags []string
	if err := json.Unmarshal(binding.Attributes["cflags"], &cflags); err != nil {
		t.Fatal(err)
	}
	if len(cflags) != 2 || cflags[0] != "-O2" || cflags[1] != "-Wall" {
		t.Fatalf("cflags = %v, want [-O2 -Wall]", cflags)
	}

	var name string
	if err := json.Unmarshal(binding.Attributes["name"], &name); err != nil {
		t.Fatal(err)
	}
	if name != "lib2" {
		t.Fatalf("name = %q, want lib2", name)
	}

	var strip bool
	if err := json.Unmarshal(binding.Attributes["strip"], &strip); err != nil {
		t.Fatal(err)
	}
	if !strip {
		t.Fatal("strip = false, want true (bool passed through unexpanded)")
	}
}

func TestEvaluateAttributesUnknownVariableIsFatal(t *testing.T) {
	p := &Project{ID: "foo"}
	binding := &DriverBinding{Driver: "c", RawJSON: json.RawMessage(`{"flag":"${MISSING}"}`)}
	expander := attribute.NewExpander(attribute.Scope{})

	err := EvaluateAttributes(p, binding, expander)
	if err == nil {
		t.Fatal("expected an error for an unresolved variable")
	}
}

func TestEvaluateAttributesSkipsEmptyRawJSON(t *testing.T) {
	p := &Project{ID: "foo"}
	binding := &DriverBinding{Driver: "c"}
	if err := EvaluateAttributes(p, binding, attribute.NewExpander(attribute.Scope{})); err != nil {
		t.Fatal(err)
	}
	if binding.Attributes != nil {
		t.Fatalf("Attributes = %v, want nil", binding.Attributes)
	}
}
