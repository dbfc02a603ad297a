package lifecycle

import "testing"

func TestRunAtExitRunsHooksInOrder(t *testing.T) {
	var order []int
	RegisterAtExit(func() error { order = append(order, 1); return nil })
	RegisterAtExit(func() error { order = append(order, 2); return nil })

	if err := RunAtExit(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestInterruptibleContextStartsUncanceled(t *testing.T) {
	ctx, canc := InterruptibleContext()
	defer canc()
	if err := ctx.Err(); err != nil {
		t.Fatalf("fresh context already canceled: %v", err)
	}
	canc()
	if ctx.Err() == nil {
		t.Fatal("expected context to be canceled after calling cancel")
	}
}
