package pdb

import (
	"github.com/sirupsen/logrus"

	"github.com/andrew-torda/molcache/pdb/geom"
)

const (
	// DfltBondTolerance is added to the sum of covalent radii.
	DfltBondTolerance = 0.45
	maxConect2        = 20.0 // CONECT bonds longer than sqrt(20) A are refused
	maxLink           = 2.0  // C to N and O3' to P between residues
	dfltRadius        = 0.76 // for elements we have no radius for
)

// covalentRadius in Angstrom, from Cordero et al, Dalton Trans. 2008.
// Hydrogen is stretched a bit, since it only ever gets one bond.
var covalentRadius = map[string]float32{
	"H":  0.4,
	"D":  0.4,
	"C":  0.76,
	"O":  0.66,
	"N":  0.71,
	"P":  1.07,
	"S":  1.05,
	"SE": 1.2,
	"K":  2.03,
	"CA": 1.76,
	"MG": 1.41,
	"CL": 1.02,
	"NA": 1.66,
	"CU": 1.32,
	"ZN": 1.22,
	"CO": 1.5,
	"FE": 1.52,
	"MN": 1.61,
	"CR": 1.39,
	"SI": 1.11,
	"BE": 0.96,
	"F":  0.57,
	"BR": 1.2,
	"I":  1.39,
}

// BondStrategy adds bonds that the file did not declare. It is called
// after CONECT records have been applied and returns the number of new
// bonds. It must give the same bonds every time for the same atoms.
type BondStrategy interface {
	InferBonds(mol *Molecule, log *logrus.Entry) int
}

// CovalentRadius bonds two atoms of one residue if they are closer than
// the sum of their covalent radii plus Tolerance. Residues are then
// linked C to N (peptides) and O3' to P (nucleic acids).
// HETATM records only get bonds from CONECT.
type CovalentRadius struct {
	Tolerance float32
}

// radius gives the covalent radius of an element.
func radius(element string) float32 {
	if r, ok := covalentRadius[element]; ok {
		return r
	}
	return dfltRadius
}

// InferBonds walks the atoms in file order.
func (c CovalentRadius) InferBonds(mol *Molecule, log *logrus.Entry) int {
	atoms := mol.AtomsInOrder()
	nNew := 0
	for start := 0; start < len(atoms); {
		end := start + 1
		for end < len(atoms) && atoms[end].sameResidue(atoms[start]) {
			end++
		}
		nNew += c.residueBonds(mol, atoms[start:end])
		start = end
	}
	nNew += linkResidues(mol, atoms, log)
	return nNew
}

// residueBonds looks at all pairs in one residue.
func (c CovalentRadius) residueBonds(mol *Molecule, res []*PdbAtom) int {
	n := 0
	for i, a1 := range res {
		if a1.Kind == IsHetatm {
			continue
		}
		r1 := radius(a1.Element)
		for _, a2 := range res[i+1:] {
			if a2.Kind == IsHetatm {
				continue
			}
			maxLen := r1 + radius(a2.Element) + c.Tolerance
			if _, err := geom.WithinBond(a1.Pos, a2.Pos, maxLen); err != nil {
				continue
			}
			if mol.addBond(a1, a2) {
				n++
			}
		}
	}
	return n
}

// linkResidues joins the C (or O3') of one residue to the N (or P)
// of the residue after it in the file. Numbers are not used, since
// 52 may be followed by 52A. Links longer than maxLink are chain
// breaks.
func linkResidues(mol *Molecule, atoms []*PdbAtom, log *logrus.Entry) int {
	var last, prev *PdbAtom
	var sum float32
	n, nres, lastRes := 0, 0, 0
	for _, a := range atoms {
		if a.Kind == IsHetatm {
			continue
		}
		if prev == nil || !a.sameResidue(prev) {
			nres++
		}
		prev = a
		switch a.Name {
		case "C", "O3'":
			last, lastRes = a, nres
		case "N", "P":
			if last == nil || last.ChainID != a.ChainID || nres != lastRes+1 {
				continue
			}
			if d := geom.Dist(a.Pos, last.Pos); d < maxLink {
				if mol.addBond(last, a) {
					sum += d
					n++
				}
			} else {
				log.WithFields(logrus.Fields{
					"from": last.Serial, "to": a.Serial, "dist": d,
				}).Debug("chain break")
			}
			last = nil
		}
	}
	if n > 0 {
		log.WithField("mean", sum/float32(n)).Debug("residue links")
	}
	return n
}

// conect reads a CONECT record: an atom in 7-11 and up to four bonded
// atoms in 12-16, 17-21, 22-26 and 27-31. The bonds are made once all
// atoms are read.
func (ps *parseState) conect(line string) error {
	from, err := ps.atoi(line, "conect serial", 6, 11)
	if err != nil {
		return err
	}
	ps.stats.Conects++
	for col := 11; col < 31; col += 5 {
		if field(line, col, col+5) == "" {
			break
		}
		to, err := ps.atoi(line, "conect partner", col, col+5)
		if err != nil {
			return err
		}
		ps.conects = append(ps.conects, [2]int{from, to})
	}
	return nil
}

// conectBonds applies the CONECT records. Partners we dropped, like
// hydrogens, are quietly ignored. Bonds that are much too long are
// logged and refused.
func (ps *parseState) conectBonds() {
	mol := ps.mol
	for _, c := range ps.conects {
		a1, ok1 := mol.Atoms[c[0]]
		a2, ok2 := mol.Atoms[c[1]]
		if !ok1 || !ok2 {
			continue
		}
		if d2 := geom.Dist2(a1.Pos, a2.Pos); d2 > maxConect2 {
			ps.log.WithFields(logrus.Fields{
				"from": c[0], "to": c[1], "dist": geom.Dist(a1.Pos, a2.Pos),
			}).Warn("CONECT too long")
			continue
		}
		mol.addBond(a1, a2)
	}
}
