package driver

import "testing"

func TestRegisterAndLoad(t *testing.T) {
	Register("test/echo", func(api *API) error {
		return api.Pattern("SOURCES", "*.c")
	})

	l := &Loader{}
	d, err := l.Load("test/echo")
	if err != nil {
		t.Fatal(err)
	}
	if n := d.Find("sources"); n == nil {
		t.Fatal("expected case-insensitive SOURCES lookup to succeed")
	}

	d2, err := l.Load("test/echo")
	if err != nil {
		t.Fatal(err)
	}
	if d != d2 {
		t.Fatal("expected cached driver instance on second load")
	}
}

func TestDuplicateNodeNameIsFatal(t *testing.T) {
	Register("test/dup", func(api *API) error {
		if err := api.Pattern("SOURCES", "*.c"); err != nil {
			return err
		}
		return api.Pattern("SOURCES", "*.h")
	})
	l := &Loader{}
	if _, err := l.Load("test/dup"); err == nil {
		t.Fatal("expected duplicate node name error")
	}
}

func TestUnknownSourceReferenceIsFatal(t *testing.T) {
	Register("test/badsource", func(api *API) error {
		return api.Rule("OBJECTS", "NOPE", Target{Kind: TargetMap}, nil)
	})
	l := &Loader{}
	if _, err := l.Load("test/badsource"); err == nil {
		t.Fatal("expected unknown node reference error")
	}
}

func TestPatternTargetMustReferencePatternNode(t *testing.T) {
	Register("test/badtarget", func(api *API) error {
		if err := api.Pattern("SOURCES", "*.c"); err != nil {
			return err
		}
		if err := api.Rule("OBJECTS", "SOURCES", Target{Kind: TargetMap}, nil); err != nil {
			return err
		}
		return api.Rule("LIB", "OBJECTS", Target{Kind: TargetPattern, Pattern: "$OBJECTS"}, nil)
	})
	l := &Loader{}
	if _, err := l.Load("test/badtarget"); err == nil {
		t.Fatal("expected non-pattern reference error")
	}
}
