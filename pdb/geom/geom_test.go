//

package geom_test

import (
	"math"
	"testing"

	. "github.com/andrew-torda/molcache/pdb/cmmn"
	. "github.com/andrew-torda/molcache/pdb/geom"
)

var bondtests = []struct {
	name   string
	x1     Xyz
	x2     Xyz
	maxLen float32
	e      bool
}{
	{"C-C  ", Xyz{X: 1.53, Y: 0.00, Z: 0}, Xyz{X: 0, Y: 0, Z: 0}, 1.97, false},
	{"same ", Xyz{X: 0.00, Y: 0.00, Z: 0}, Xyz{X: 0.1, Y: 0, Z: 0}, 1.97, true},
	{"diag ", Xyz{X: 0.80, Y: 0.80, Z: 0.8}, Xyz{X: 0, Y: 0, Z: 0}, 1.97, false},
	{"far x", Xyz{X: 5.00, Y: 0.00, Z: 0}, Xyz{X: 0, Y: 0, Z: 0}, 1.97, true},
	{"far 3", Xyz{X: 1.50, Y: 1.50, Z: 1.5}, Xyz{X: 0, Y: 0, Z: 0}, 1.97, true},
}

// permuteXyz rotates x, y znd z for tests whose answers should not change
// when we move the axes around.
func permuteXyz(x Xyz) Xyz {
	x.X, x.Y, x.Z = x.Y, x.Z, x.X
	return x
}

func TestWithinBond(t *testing.T) {
	for _, test := range bondtests {
		x1, x2 := test.x1, test.x2
		d1, e1 := WithinBond(x1, x2, test.maxLen)
		d2, e2 := WithinBond(x2, x1, test.maxLen)
		x1, x2 = permuteXyz(x1), permuteXyz(x2)
		d3, e3 := WithinBond(x1, x2, test.maxLen)
		if (e1 == nil) != (e2 == nil) || (e1 == nil) != (e3 == nil) {
			t.Errorf("test %s, did not get the same error state", test.name)
		}
		if e1 == nil && (d1 != d2 || d1 != d3) {
			t.Errorf("test %s. Did not get identical results, %f %f %f",
				test.name, d1, d2, d3)
		}
		if test.e && e1 == nil {
			t.Errorf("test %s expected error did not get one", test.name)
		}
		if !test.e && e1 != nil {
			t.Errorf("test %s got unexpected error %s", test.name, e1)
		}
	}
}

func TestDist(t *testing.T) {
	d := Dist(Xyz{X: 0, Y: 3, Z: 0}, Xyz{X: 4, Y: 0, Z: 0})
	if math.Abs(float64(d-5)) > 1e-6 {
		t.Errorf("Dist got %f wanted 5", d)
	}
	if d2 := Dist2(Xyz{X: 0, Y: 3, Z: 0}, Xyz{X: 4, Y: 0, Z: 0}); d2 != 25 {
		t.Errorf("Dist2 got %f wanted 25", d2)
	}
}

func TestBox(t *testing.T) {
	var b Box
	if c := b.Center(); c != (Xyz{}) {
		t.Errorf("empty box center %v", c)
	}
	if b.Diagonal() != 0 {
		t.Error("empty box should have no diagonal")
	}
	b.Add(Xyz{X: -1, Y: 0, Z: 2})
	b.Add(Xyz{X: 3, Y: 4, Z: 2})
	b.Add(Xyz{X: 1, Y: 2, Z: 2})
	if b.N() != 3 {
		t.Errorf("N got %d", b.N())
	}
	if c := b.Center(); c != (Xyz{X: 1, Y: 2, Z: 2}) {
		t.Errorf("center got %v", c)
	}
	want := float32(math.Sqrt(32))
	if d := b.Diagonal(); math.Abs(float64(d-want)) > 1e-5 {
		t.Errorf("diagonal got %f wanted %f", d, want)
	}
}
