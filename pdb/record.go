package pdb

import (
	"fmt"

	"github.com/andrew-torda/molcache/pdb/cmmn"
)

// AtomKind says where an atom came from.
type AtomKind byte

const (
	IsAtom    AtomKind = iota + 1 // ATOM record
	IsHetatm                      // HETATM record
	IsNucleic                     // ATOM record in a nucleotide
)

func (k AtomKind) String() string {
	switch k {
	case IsAtom:
		return "ATOM"
	case IsHetatm:
		return "HETATM"
	case IsNucleic:
		return "NUCLEIC"
	}
	return fmt.Sprintf("AtomKind(%d)", byte(k))
}

// PdbAtom is one ATOM or HETATM line.
type PdbAtom struct {
	Serial    int
	Kind      AtomKind
	Name      string // atom name, "CA", "O3'"
	ResName   string
	ChainID   byte
	ResSeq    int
	ICode     byte // insertion code, ' ' if there is none
	AltLoc    byte
	Pos       cmmn.Xyz
	Element   string
	BondCount int
}

// AtomKey is what makes an atom unique inside a model.
type AtomKey struct {
	ChainID byte
	ResSeq  int
	ICode   byte
	Name    string
}

// Key returns the identity of the atom.
func (a *PdbAtom) Key() AtomKey {
	return AtomKey{a.ChainID, a.ResSeq, a.ICode, a.Name}
}

// residueKey is Key without the atom name.
func (a *PdbAtom) residueKey() AtomKey {
	return AtomKey{a.ChainID, a.ResSeq, a.ICode, ""}
}

// sameResidue says if two atoms sit in the same residue.
func (a *PdbAtom) sameResidue(b *PdbAtom) bool {
	return a.residueKey() == b.residueKey()
}

func (a *PdbAtom) String() string {
	return fmt.Sprintf("(%d %s %s %c%d%c [%0.3f %0.3f %0.3f])",
		a.Serial, a.Name, a.ResName, a.ChainID, a.ResSeq, a.ICode,
		a.Pos.X, a.Pos.Y, a.Pos.Z)
}

// Bond joins two atoms, given by serial number.
type Bond struct {
	A1, A2 int
}

// Residue is the residue part of HELIX and SHEET records.
type Residue struct {
	Name    string
	ChainID byte
	Seq     int
	ICode   byte
}

func (r Residue) key() AtomKey {
	return AtomKey{r.ChainID, r.Seq, r.ICode, ""}
}

// HelixClass is column 39-40 of a HELIX record.
type HelixClass int

const (
	RightAlpha HelixClass = iota + 1 // default
	RightOmega
	RightPi
	RightGamma
	Right310
	LeftAlpha
	LeftOmega
	LeftGamma
	Ribbon27
	Polyproline
)

// Valid says if the class is one of the ten in the PDB format guide.
func (c HelixClass) Valid() bool { return c >= RightAlpha && c <= Polyproline }

// PdbHelix is one HELIX record.
type PdbHelix struct {
	Serial  int
	ID      string
	Init    Residue
	Term    Residue
	Class   HelixClass
	Comment string
	Length  int
}

// SenseCode is the strand sense in a SHEET record.
type SenseCode int

const (
	SenseAntiParallel SenseCode = -1
	SenseFirstStrand  SenseCode = 0
	SenseParallel     SenseCode = 1
)

// Registration names the atom that lines a strand up with its
// neighbour.
type Registration struct {
	AtomName string
	Residue
}

// PdbBetaSheet is one SHEET record, that is, one strand.
type PdbBetaSheet struct {
	Strand     int
	SheetID    string
	NumStrands int
	Init       Residue
	Term       Residue
	Sense      SenseCode
	RegCur     Registration // atom in this strand
	RegPrev    Registration // atom in the previous strand
}

// StructureType is how a chain segment gets drawn.
type StructureType int

const (
	Ribbon StructureType = iota
	AlphaHelix
	BetaSheet
	Nucleic
)

// NucleicType is the base type of a nucleotide segment.
type NucleicType int

const (
	NotANucleic NucleicType = -1
	Purine      NucleicType = 1
	Pyrimidine  NucleicType = 2
)

// ChainRenderingDescriptor covers one residue of a chain. The parser
// fills these in after reading, from the atoms of each residue.
type ChainRenderingDescriptor struct {
	Backbone   *PdbAtom // CA or C5'
	Guide      *PdbAtom // O or C1'
	Start      *PdbAtom // N or O5'
	End        *PdbAtom // C or O3'
	NucleicEnd *PdbAtom // C3' extends the spline a little

	NucleicCorner *PdbAtom
	NucleicGuide  *PdbAtom
	NucleicPlanar *PdbAtom
	NucleicType   NucleicType

	CurveIndex   int
	Type         StructureType
	EndOfSegment bool
}
