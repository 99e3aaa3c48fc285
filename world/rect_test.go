package world

import "testing"

func TestEmptyRectIsEmpty(t *testing.T) {
	if !EmptyRect().Empty() {
		t.Fatalf("EmptyRect should report Empty")
	}
	if (Rect{}).Empty() {
		t.Fatalf("zero Rect should not report Empty")
	}
}

func TestRectUnion(t *testing.T) {
	a := Rect{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5}
	b := Rect{MinX: 3, MinY: -2, MaxX: 10, MaxY: 1}
	got := a.Union(b)
	want := Rect{MinX: 0, MinY: -2, MaxX: 10, MaxY: 5}
	if got != want {
		t.Fatalf("Union: expected %+v, got %+v", want, got)
	}

	if got := a.Union(EmptyRect()); got != a {
		t.Fatalf("Union with empty operand should be a no-op, got %+v", got)
	}
	if got := EmptyRect().Union(a); got != a {
		t.Fatalf("Union of empty with a should be a, got %+v", got)
	}
}

func TestRectUnionPoint(t *testing.T) {
	r := EmptyRect()
	r = r.UnionPoint(4, 7)
	if r != (Rect{MinX: 4, MinY: 7, MaxX: 4, MaxY: 7}) {
		t.Fatalf("UnionPoint from empty: got %+v", r)
	}
	r = r.UnionPoint(-1, 9)
	if r != (Rect{MinX: -1, MinY: 7, MaxX: 4, MaxY: 9}) {
		t.Fatalf("UnionPoint growth: got %+v", r)
	}
}

func TestRectClamp(t *testing.T) {
	r := Rect{MinX: -5, MinY: -5, MaxX: 150, MaxY: 150}
	got := r.Clamp(100)
	want := Rect{MinX: 0, MinY: 0, MaxX: 99, MaxY: 99}
	if got != want {
		t.Fatalf("Clamp: expected %+v, got %+v", want, got)
	}

	outside := Rect{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}
	if !outside.Clamp(100).Empty() {
		t.Fatalf("Clamp of a rect entirely outside bounds should be empty")
	}
}

func TestRectExpand(t *testing.T) {
	r := Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	got := r.Expand(3)
	want := Rect{MinX: 7, MinY: 7, MaxX: 23, MaxY: 23}
	if got != want {
		t.Fatalf("Expand: expected %+v, got %+v", want, got)
	}
	if got := EmptyRect().Expand(5); !got.Empty() {
		t.Fatalf("Expand of an empty rect should stay empty")
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{MinX: 0, MinY: 0, MaxX: 9, MaxY: 9}
	if !r.Contains(0, 0) || !r.Contains(9, 9) {
		t.Fatalf("Contains should include boundary points")
	}
	if r.Contains(10, 5) || r.Contains(-1, 5) {
		t.Fatalf("Contains should exclude points outside bounds")
	}
	if EmptyRect().Contains(0, 0) {
		t.Fatalf("empty rect should contain nothing")
	}
}

func TestFull(t *testing.T) {
	r := Full(Side)
	if r.MinX != 0 || r.MinY != 0 || r.MaxX != Side-1 || r.MaxY != Side-1 {
		t.Fatalf("Full(%d): got %+v", Side, r)
	}
}
