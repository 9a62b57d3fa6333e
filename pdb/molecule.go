package pdb

import (
	"fmt"

	"github.com/andrew-torda/matrix"

	"github.com/andrew-torda/molcache/pdb/cmmn"
)

// Tessellation defaults, used by ClearLists.
const (
	DfltGeometrySlices = 20
	DfltRibbonSlices   = 30
	DfltSphereSlices   = 10
)

// Molecule is everything we keep from one PDB file.
// A Molecule is usually reused from one file to the next. The parser
// calls ClearLists before it starts, so callers do not have to.
// Atom serials are the keys of Atoms, so they are unique. Order keeps
// the serials in the order they appeared in the file.
type Molecule struct {
	Name      string
	Atoms     map[int]*PdbAtom
	Order     []int
	MaxSerial int
	Bonds     []Bond
	Helices   []PdbHelix
	Sheets    []PdbBetaSheet
	Chains    [][]*ChainRenderingDescriptor

	DisplayHydrogens bool
	GeometrySlices   int
	SphereSlices     int
	RibbonSlices     int
	RibbonNodeCount  int
	Center           cmmn.Xyz // middle of the bounding box of ATOM records
	DcOffset         float32  // diagonal of the bounding box, for the camera
	Centered         bool     // Center has been subtracted from every atom

	// Scratch space for the spline of one ribbon segment, with
	// RibbonSlices+1 rows of x, y, z. Cache2Valid says if Cache2
	// holds the previous segment.
	Cache1      *matrix.FMatrix2d
	Cache2      *matrix.FMatrix2d
	Cache2Valid bool

	bondSeen map[Bond]struct{}
}

// NewMolecule gives back an empty molecule with the default slice counts.
func NewMolecule() *Molecule {
	mol := new(Molecule)
	mol.ClearLists()
	return mol
}

// ClearLists resets a molecule so it can be filled again. Calling it
// twice does no more than calling it once. The Name is kept, since
// callers usually set it before parsing.
func (mol *Molecule) ClearLists() {
	if mol.Atoms == nil {
		mol.Atoms = make(map[int]*PdbAtom)
	} else {
		clear(mol.Atoms)
	}
	if mol.bondSeen == nil {
		mol.bondSeen = make(map[Bond]struct{})
	} else {
		clear(mol.bondSeen)
	}
	mol.Order = mol.Order[:0]
	mol.MaxSerial = 0
	mol.Bonds = mol.Bonds[:0]
	mol.Helices = mol.Helices[:0]
	mol.Sheets = mol.Sheets[:0]
	mol.Chains = mol.Chains[:0]
	mol.GeometrySlices = DfltGeometrySlices
	mol.RibbonSlices = DfltRibbonSlices
	mol.SphereSlices = DfltSphereSlices
	mol.RibbonNodeCount = 0
	mol.Center = cmmn.Xyz{}
	mol.DcOffset = 0
	mol.Centered = false
	mol.DisplayHydrogens = false
	mol.Cache1 = resetScratch(mol.Cache1, mol.RibbonSlices+1)
	mol.Cache2 = resetScratch(mol.Cache2, mol.RibbonSlices+1)
	mol.Cache2Valid = false
}

// resetScratch sizes a spline cache and zeroes it.
func resetScratch(m *matrix.FMatrix2d, nrow int) *matrix.FMatrix2d {
	if m == nil {
		return matrix.NewFMatrix2d(nrow, 3)
	}
	m.Resize(nrow, 3)
	for _, row := range m.Mat {
		clear(row)
	}
	return m
}

// NAtoms is the number of atoms we kept.
func (mol *Molecule) NAtoms() int { return len(mol.Atoms) }

// NBonds is the number of bonds, declared or inferred.
func (mol *Molecule) NBonds() int { return len(mol.Bonds) }

// AtomsInOrder returns the atoms in the order of the file.
func (mol *Molecule) AtomsInOrder() []*PdbAtom {
	ret := make([]*PdbAtom, 0, len(mol.Order))
	for _, serial := range mol.Order {
		if a, ok := mol.Atoms[serial]; ok {
			ret = append(ret, a)
		}
	}
	return ret
}

// addAtom stores an atom. A second atom with the same serial
// is refused.
func (mol *Molecule) addAtom(a *PdbAtom) bool {
	if _, ok := mol.Atoms[a.Serial]; ok {
		return false
	}
	mol.Atoms[a.Serial] = a
	mol.Order = append(mol.Order, a.Serial)
	mol.MaxSerial = max(mol.MaxSerial, a.Serial)
	return true
}

// addBond joins two atoms unless they are already joined, in either
// direction. It returns true if a new bond was made.
func (mol *Molecule) addBond(a1, a2 *PdbAtom) bool {
	if a1 == a2 {
		return false
	}
	b := Bond{min(a1.Serial, a2.Serial), max(a1.Serial, a2.Serial)}
	if _, ok := mol.bondSeen[b]; ok {
		return false
	}
	if mol.bondSeen == nil {
		mol.bondSeen = make(map[Bond]struct{})
	}
	mol.bondSeen[b] = struct{}{}
	mol.Bonds = append(mol.Bonds, Bond{a1.Serial, a2.Serial})
	a1.BondCount++
	a2.BondCount++
	return true
}

// Validate checks that a molecule is something a caller can use.
// Every bond must point at atoms we have and every atom must have
// its names filled in.
func (mol *Molecule) Validate() error {
	if len(mol.Atoms) == 0 {
		return ErrEmptyMolecule
	}
	if len(mol.Order) != len(mol.Atoms) {
		return fmt.Errorf("molecule %q: %d serials in order, %d atoms", mol.Name, len(mol.Order), len(mol.Atoms))
	}
	for serial, a := range mol.Atoms {
		if a.Serial != serial {
			return fmt.Errorf("molecule %q: atom %d stored under %d", mol.Name, a.Serial, serial)
		}
		if a.Name == "" || a.ResName == "" || a.Kind == 0 {
			return fmt.Errorf("molecule %q: atom %d incomplete", mol.Name, serial)
		}
	}
	for i, b := range mol.Bonds {
		_, ok1 := mol.Atoms[b.A1]
		_, ok2 := mol.Atoms[b.A2]
		if !ok1 || !ok2 {
			return fmt.Errorf("molecule %q: bond %d (%d-%d) to missing atom", mol.Name, i, b.A1, b.A2)
		}
	}
	for _, chain := range mol.Chains {
		for _, d := range chain {
			if d.Backbone == nil || d.Guide == nil {
				return fmt.Errorf("molecule %q: chain descriptor without backbone", mol.Name)
			}
		}
	}
	return nil
}
