// Package pdb/cmmn has common definitions for coordinates shared by
// the pdb parser and the geometry code.
package cmmn

import (
	"math"
)

// Xyz is a point or a vector. PDB files only give three decimal places,
// so float32 is plenty.
type Xyz struct{ X, Y, Z float32 }

// Sub returns xyz - o
func (xyz Xyz) Sub(o Xyz) Xyz {
	return Xyz{xyz.X - o.X, xyz.Y - o.Y, xyz.Z - o.Z}
}

// Add returns xyz + o
func (xyz Xyz) Add(o Xyz) Xyz {
	return Xyz{xyz.X + o.X, xyz.Y + o.Y, xyz.Z + o.Z}
}

// Len2 gives us the length squared
func (xyz Xyz) Len2() float32 { return xyz.X*xyz.X + xyz.Y*xyz.Y + xyz.Z*xyz.Z }

// Len returns the vector length
func (xyz Xyz) Len() float32 { return float32(math.Sqrt(float64(xyz.Len2()))) }
