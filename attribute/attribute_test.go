package attribute

import "testing"

func TestExpandVar(t *testing.T) {
	e := NewExpander(Scope{Vars: map[string]string{"FOO": "bar"}})
	got, err := e.Expand("p", "pkg", "prefix-${FOO}-suffix")
	if err != nil {
		t.Fatal(err)
	}
	if want := "prefix-bar-suffix"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExpandFunc(t *testing.T) {
	e := NewExpander(Scope{Funcs: BuiltinScope("c", "/out/lib/foo", map[string]string{"build-type": "debug"})})
	got, err := e.Expand("p", "pkg", "lang=$language()")
	if err != nil {
		t.Fatal(err)
	}
	if want := "lang=c"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, err = e.Expand("p", "pkg", "$cfg(build-type)")
	if err != nil {
		t.Fatal(err)
	}
	if want := "debug"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUnknownVariableIsFatal(t *testing.T) {
	e := NewExpander(Scope{})
	if _, err := e.Expand("p", "pkg", "${NOPE_UNSET_VAR}"); err == nil {
		t.Fatal("expected error for unknown variable")
	}
}

func TestUnknownFunctionIsFatal(t *testing.T) {
	e := NewExpander(Scope{})
	if _, err := e.Expand("p", "pkg", "$nope()"); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestUnterminatedExpansionIsFatal(t *testing.T) {
	e := NewExpander(Scope{})
	if _, err := e.Expand("p", "pkg", "${FOO"); err == nil {
		t.Fatal("expected error for unterminated expansion")
	}
}

func TestExpansionIsMemoised(t *testing.T) {
	calls := 0
	e := NewExpander(Scope{Funcs: map[string]func(args []string) (string, error){
		"count": func(args []string) (string, error) {
			calls++
			return "x", nil
		},
	}})
	for i := 0; i < 3; i++ {
		if _, err := e.Expand("p", "pkg", "$count()"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call due to memoisation, got %d", calls)
	}
}
