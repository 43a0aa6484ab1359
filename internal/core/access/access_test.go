package access

import (
	"errors"
	"testing"
)

type position struct{ X, Y float64 }
type velocity struct{ X, Y float64 }
type health struct{ HP int }
type clock struct{ Tick uint64 }

var (
	tPos   = ComponentOf[position]()
	tVel   = ComponentOf[velocity]()
	tHP    = ComponentOf[health]()
	tClock = ResourceOf[clock]()
)

func TestTypeIdentity(t *testing.T) {
	if ComponentOf[position]() != tPos {
		t.Error("expected equal component types")
	}
	if ComponentOf[position]() == (Type{Kind: Resource, ID: tPos.ID}) {
		t.Error("component and resource of the same Go type must differ")
	}
	m := map[Type]int{tPos: 1}
	if m[ComponentOf[position]()] != 1 {
		t.Error("expected Type usable as map key")
	}
}

func TestActionCompatible(t *testing.T) {
	tests := []struct {
		a, b Action
		want bool
	}{
		{Read(1), Read(1), true},
		{Read(3), Read(2), true},
		{Read(1), Write, false},
		{Write, Read(1), false},
		{Write, Write, false},
	}
	for _, tt := range tests {
		if got := tt.a.Compatible(tt.b); got != tt.want {
			t.Errorf("%s.Compatible(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if Read(0) != Read(1) {
		t.Error("expected Read(0) clamped to Read(1)")
	}
}

func TestSelfCompatibility(t *testing.T) {
	tests := []struct {
		name string
		a    *Access
		want bool
	}{
		{"empty", New(), true},
		{"reads only", Reads(tPos, tVel), true},
		{"single write", Writes(tPos), false},
		{"read and write", MustMerge(Reads(tVel), Writes(tPos)), false},
		{"all", All(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.IsCompatible(tt.a); got != tt.want {
				t.Errorf("IsCompatible(self) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b *Access
		want bool
	}{
		{"disjoint writes", Writes(tPos), Writes(tVel), true},
		{"read read", Reads(tPos), Reads(tPos), true},
		{"write read", Writes(tPos), Reads(tPos), false},
		{"read write", Reads(tPos), Writes(tPos), false},
		{"write write", Writes(tPos), Writes(tPos), false},
		{"all vs empty", All(), New(), true},
		{"empty vs all", New(), All(), true},
		{"all vs read", All(), Reads(tPos), false},
		{"read vs all", Reads(tPos), All(), false},
		{"all vs all", All(), All(), false},
		{"component vs resource of same type", Writes(ComponentOf[clock]()), Writes(tClock), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.a.Clone()
			if got := tt.a.IsCompatible(tt.b); got != tt.want {
				t.Errorf("IsCompatible = %v, want %v", got, tt.want)
			}
			if !tt.a.Equal(before) {
				t.Error("IsCompatible mutated the receiver")
			}
		})
	}
}

func TestTryCombineDisjointUnion(t *testing.T) {
	a := MustMerge(Reads(tPos), Writes(tVel))
	b := MustMerge(Writes(tHP), Reads(tClock))
	if err := a.TryCombine(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := MustMerge(Reads(tPos), Writes(tVel), Writes(tHP), Reads(tClock))
	if !a.Equal(want) {
		t.Errorf("got %s, want %s", a, want)
	}
}

func TestTryCombineReadsAccumulate(t *testing.T) {
	a := Reads(tPos)
	if err := a.TryCombine(Reads(tPos)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.TryCombine(Single(tPos, Read(2))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if act, _ := a.Get(tPos); act != Read(4) {
		t.Errorf("expected Read(4), got %s", act)
	}
}

func TestTryCombineAtomic(t *testing.T) {
	a := MustMerge(Reads(tPos), Writes(tVel))
	before := a.Clone()
	// tHP is new, tVel conflicts: nothing may be merged.
	err := a.TryCombine(MustMerge(Writes(tHP), Reads(tVel)))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Type != tVel {
		t.Errorf("expected conflict on %s, got %v", tVel, err)
	}
	if !a.Equal(before) {
		t.Errorf("receiver mutated on failure: got %s, want %s", a, before)
	}
}

func TestTryCombineAll(t *testing.T) {
	t.Run("all into empty", func(t *testing.T) {
		a := New()
		if err := a.TryCombine(All()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !a.IsAll() {
			t.Error("expected All")
		}
	})
	t.Run("all into non-empty", func(t *testing.T) {
		a := Reads(tPos)
		if err := a.TryCombine(All()); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if a.IsAll() {
			t.Error("receiver mutated")
		}
	})
	t.Run("claim into all", func(t *testing.T) {
		a := All()
		if err := a.TryCombine(Reads(tPos)); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if a.Len() != 0 {
			t.Error("receiver mutated")
		}
	})
	t.Run("all into all", func(t *testing.T) {
		if err := All().TryCombine(All()); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestCombineThenRemoveRestores(t *testing.T) {
	tests := []struct {
		name  string
		start *Access
		x     *Access
	}{
		{"empty plus reads", New(), Reads(tPos, tVel)},
		{"shared reads", Reads(tPos), Reads(tPos)},
		{"disjoint write", Reads(tPos), Writes(tVel)},
		{"mixed", MustMerge(Reads(tPos), Writes(tHP)), MustMerge(Reads(tPos), Writes(tVel), Reads(tClock))},
		{"all", New(), All()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := tt.start.Clone()
			if err := acc.TryCombine(tt.x); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			acc.Remove(tt.x)
			if !acc.Equal(tt.start) {
				t.Errorf("got %s, want %s", acc, tt.start)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	t.Run("absent is no-op", func(t *testing.T) {
		a := Reads(tPos)
		a.Remove(Writes(tVel))
		if !a.Equal(Reads(tPos)) {
			t.Errorf("got %s", a)
		}
	})
	t.Run("read counter decrements", func(t *testing.T) {
		a := Single(tPos, Read(3))
		a.Remove(Reads(tPos))
		if act, _ := a.Get(tPos); act != Read(2) {
			t.Errorf("expected Read(2), got %s", act)
		}
	})
	t.Run("zero readers deleted", func(t *testing.T) {
		a := Reads(tPos)
		a.Remove(Reads(tPos))
		if !a.IsEmpty() {
			t.Errorf("expected empty, got %s", a)
		}
	})
	t.Run("write deleted", func(t *testing.T) {
		a := Writes(tPos)
		a.Remove(Writes(tPos))
		if !a.IsEmpty() {
			t.Errorf("expected empty, got %s", a)
		}
	})
}

func TestMergeRejectsSelfConflict(t *testing.T) {
	if _, err := Merge(Writes(tPos), Writes(tPos)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for double write, got %v", err)
	}
	if _, err := Merge(Reads(tPos), Writes(tPos)); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for read+write, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic from MustMerge")
		}
	}()
	MustMerge(Writes(tPos), Reads(tPos))
}

func TestCovers(t *testing.T) {
	decl := MustMerge(Reads(tVel), Writes(tPos))
	tests := []struct {
		name string
		got  *Access
		want bool
	}{
		{"exact", decl.Clone(), true},
		{"subset", Reads(tVel), true},
		{"read under write", Reads(tPos), true},
		{"write under read", Writes(tVel), false},
		{"undeclared", Reads(tHP), false},
		{"all", All(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decl.Covers(tt.got); got != tt.want {
				t.Errorf("Covers = %v, want %v", got, tt.want)
			}
		})
	}
	if !All().Covers(Writes(tPos)) {
		t.Error("expected All to cover everything")
	}
}

func TestString(t *testing.T) {
	a := MustMerge(Writes(tVel), Reads(tPos))
	want := "{component(access.position):Read(1), component(access.velocity):Write}"
	if got := a.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := All().String(); got != "{All}" {
		t.Errorf("got %q", got)
	}
}
