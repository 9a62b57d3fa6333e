// Calculate some geometries: distances, bonding ranges and the box
// around a molecule.

package geom

import (
	"math"

	"github.com/andrew-torda/molcache/pdb/cmmn"
)

const (
	minBond  = 0.4 // closer than this is two copies of one atom
	minBond2 = minBond * minBond
)

type Error string

func (e Error) Error() string { return string(e) }

// Dist2 returns the squared distance between two points.
func Dist2(x1, x2 cmmn.Xyz) float32 {
	return x1.Sub(x2).Len2()
}

// Dist returns the distance between two points.
func Dist(x1, x2 cmmn.Xyz) float32 {
	return float32(math.Sqrt(float64(Dist2(x1, x2))))
}

// xyzhelper makes the code below a bit more compact. Returns distance
// squared in one dimension or an error if it is already bigger than
// our limit.
func xyzhelper(r1, r2, max2 float32) (float32, error) {
	r := r1 - r2
	r = r * r
	if r > max2 {
		return r, Error("too far")
	}
	return r, nil
}

// WithinBond says if two atoms are close enough to be bonded, given
// the longest allowed bond length. Most pairs in a protein are far apart,
// so we give up after the first coordinate that is too far.
func WithinBond(x1, x2 cmmn.Xyz, maxLen float32) (float32, error) {
	max2 := maxLen * maxLen
	var xd, yd, zd float32
	var err error
	if xd, err = xyzhelper(x1.X, x2.X, max2); err != nil {
		return xd, err
	}
	if yd, err = xyzhelper(x1.Y, x2.Y, max2); err != nil {
		return yd, err
	}
	if zd, err = xyzhelper(x1.Z, x2.Z, max2); err != nil {
		return zd, err
	}
	r := xd + yd + zd
	if r > max2 {
		return r, Error("too far")
	}
	if r < minBond2 {
		return r, Error("too close")
	}
	return float32(math.Sqrt(float64(r))), nil
}

// Box is an axis aligned bounding box. The zero value is empty.
type Box struct {
	Min, Max cmmn.Xyz
	n        int
}

// Add grows the box to include x.
func (b *Box) Add(x cmmn.Xyz) {
	if b.n == 0 {
		b.Min, b.Max = x, x
		b.n++
		return
	}
	b.Min.X = min(b.Min.X, x.X)
	b.Min.Y = min(b.Min.Y, x.Y)
	b.Min.Z = min(b.Min.Z, x.Z)
	b.Max.X = max(b.Max.X, x.X)
	b.Max.Y = max(b.Max.Y, x.Y)
	b.Max.Z = max(b.Max.Z, x.Z)
	b.n++
}

// N is the number of points that went into the box.
func (b *Box) N() int { return b.n }

// Center is the middle of the box. An empty box has its center at the origin.
func (b *Box) Center() cmmn.Xyz {
	if b.n == 0 {
		return cmmn.Xyz{}
	}
	return cmmn.Xyz{
		X: (b.Max.X-b.Min.X)/2 + b.Min.X,
		Y: (b.Max.Y-b.Min.Y)/2 + b.Min.Y,
		Z: (b.Max.Z-b.Min.Z)/2 + b.Min.Z,
	}
}

// Diagonal is the length of the box diagonal.
func (b *Box) Diagonal() float32 {
	if b.n == 0 {
		return 0
	}
	return b.Max.Sub(b.Min).Len()
}
