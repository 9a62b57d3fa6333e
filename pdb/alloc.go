package pdb

// StrideBytes is the size of one vertex in a render buffer:
// position (3), normal (3) and colour (4), all float32.
const StrideBytes = (3 + 3 + 4) * 4

// Buffer sizes are upper bounds. They only have to be big enough
// and never shrink when the slice count or the number of things
// grows. Negative slice counts are treated as zero.

func nonNeg(n int) int64 { return int64(max(n, 0)) }

// BondAllocation is the number of bytes for drawing every bond as
// two cylinders of n slices.
func (mol *Molecule) BondAllocation(n int) int64 {
	return int64(len(mol.Bonds)) * 2 * 6 * (nonNeg(n) + 1) * StrideBytes
}

// SphereAllocation is the number of bytes for drawing every atom as
// a sphere with n slices.
func (mol *Molecule) SphereAllocation(n int) int64 {
	k := nonNeg(n)
	return int64(len(mol.Atoms)) * k * k * 3 * 2 * StrideBytes
}

// RibbonAllocation is the number of bytes for the ribbons. This is
// a generous overestimate.
func (mol *Molecule) RibbonAllocation(n int) int64 {
	return int64(mol.RibbonNodeCount) * 10 * 6 * (nonNeg(n) + 1) * StrideBytes
}
