package safe

import (
	"math"
	"testing"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("%s: expected panic, got none", name)
		}
	}()
	fn()
}

func TestAdd(t *testing.T) {
	if Add(1, 2) != 3 {
		t.Error("Add(1, 2) != 3")
	}
	if Add(-5, 5) != 0 {
		t.Error("Add(-5, 5) != 0")
	}
	expectPanic(t, "Add overflow", func() { Add(math.MaxInt64, 1) })
	expectPanic(t, "Add underflow", func() { Add(math.MinInt64, -1) })
}

func TestSub(t *testing.T) {
	if Sub(5, 3) != 2 {
		t.Error("Sub(5, 3) != 2")
	}
	expectPanic(t, "Sub underflow", func() { Sub(math.MinInt64, 1) })
	expectPanic(t, "Sub overflow", func() { Sub(math.MaxInt64, -1) })
}

func TestMul(t *testing.T) {
	if Mul(6, 7) != 42 {
		t.Error("Mul(6, 7) != 42")
	}
	if Mul(0, math.MaxInt64) != 0 {
		t.Error("Mul(0, max) != 0")
	}
	if Mul(-3, 4) != -12 {
		t.Error("Mul(-3, 4) != -12")
	}
	expectPanic(t, "Mul overflow", func() { Mul(math.MaxInt64, 2) })
	expectPanic(t, "Mul negative overflow", func() { Mul(math.MinInt64, -1) })
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 10) != 5 {
		t.Error("Clamp(5, 0, 10) != 5")
	}
	if Clamp(-1, 0, 10) != 0 {
		t.Error("Clamp(-1, 0, 10) != 0")
	}
	if Clamp(11, 0, 10) != 10 {
		t.Error("Clamp(11, 0, 10) != 10")
	}
}

func FuzzAddSub(f *testing.F) {
	f.Add(int64(1), int64(2))
	f.Add(int64(math.MaxInt64), int64(-1))

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() {
			// Panics are the documented overflow signal; anything else fails.
			recover()
		}()
		sum := Add(a, b)
		if Sub(sum, b) != a {
			t.Errorf("Sub(Add(%d, %d), %d) != %d", a, b, b, a)
		}
	})
}
