package pdb

import (
	"github.com/sirupsen/logrus"
)

// helix reads a HELIX record.
//
//	serial 8-10, id 12-14, initial residue 16-18 name, 20 chain,
//	22-25 number, 26 insertion code, terminal residue 28-30, 32,
//	34-37, 38, class 39-40, comment 41-70, length 72-76.
func (ps *parseState) helix(line string) error {
	var h PdbHelix
	var err error
	if h.Serial, err = ps.atoiOpt(line, "helix serial", 7, 10); err != nil {
		return err
	}
	h.ID = field(line, 11, 14)
	if h.Init, err = ps.residue(line, "helix start", 15, 19, 21, 25); err != nil {
		return err
	}
	if h.Term, err = ps.residue(line, "helix end", 27, 31, 33, 37); err != nil {
		return err
	}
	class, err := ps.atoiOpt(line, "helix class", 38, 40)
	if err != nil {
		return err
	}
	if h.Class = HelixClass(class); !h.Class.Valid() {
		h.Class = RightAlpha
	}
	h.Comment = field(line, 40, 70)
	if h.Length, err = ps.atoiOpt(line, "helix length", 71, 76); err != nil {
		return err
	}
	ps.mol.Helices = append(ps.mol.Helices, h)
	ps.stats.Helices++
	return nil
}

// residue reads the name, chain, number and insertion code that
// HELIX and SHEET records use for residues. nameAt is the first column
// of the three letter name, seqAt the first of the four digit number.
// The insertion code follows the number.
func (ps *parseState) residue(line, what string, nameAt, chainAt, seqAt, seqEnd int) (Residue, error) {
	var r Residue
	var err error
	r.Name = field(line, nameAt, nameAt+3)
	r.ChainID = line[chainAt]
	if r.Seq, err = ps.atoi(line, what, seqAt, seqEnd); err != nil {
		return r, err
	}
	r.ICode = line[seqEnd]
	return r, nil
}

// sheet reads a SHEET record. The registration columns are only
// present from the second strand of a sheet on, so they may be blank.
func (ps *parseState) sheet(line string) error {
	var s PdbBetaSheet
	var err error
	if s.Strand, err = ps.atoiOpt(line, "strand", 7, 10); err != nil {
		return err
	}
	s.SheetID = field(line, 11, 14)
	if s.NumStrands, err = ps.atoiOpt(line, "strand count", 14, 16); err != nil {
		return err
	}
	if s.Init, err = ps.residue(line, "strand start", 17, 21, 22, 26); err != nil {
		return err
	}
	if s.Term, err = ps.residue(line, "strand end", 28, 32, 33, 37); err != nil {
		return err
	}
	sense, err := ps.atoiOpt(line, "sense", 38, 40)
	if err != nil {
		return err
	}
	switch SenseCode(sense) {
	case SenseParallel, SenseAntiParallel, SenseFirstStrand:
		s.Sense = SenseCode(sense)
	default:
		return &lineError{ps.lineNum, "sense", line, errBadSense}
	}
	if s.RegCur, err = ps.registration(line, "current registration", 41); err != nil {
		return err
	}
	if s.RegPrev, err = ps.registration(line, "previous registration", 56); err != nil {
		return err
	}
	ps.mol.Sheets = append(ps.mol.Sheets, s)
	ps.stats.Sheets++
	return nil
}

// registration reads an atom name (4 columns), residue name (3),
// chain (1), number (4) and insertion code (1), starting at col.
// The cur and prev blocks have the same layout.
func (ps *parseState) registration(line, what string, col int) (Registration, error) {
	var r Registration
	var err error
	r.AtomName = field(line, col, col+4)
	r.Name = field(line, col+4, col+7)
	r.ChainID = line[col+8]
	if r.Seq, err = ps.atoiOpt(line, what, col+9, col+13); err != nil {
		return r, err
	}
	r.ICode = line[col+13]
	return r, nil
}

// findResidue looks for the descriptor of a residue. It returns the
// chain and index in the chain, or -1, -1.
func (mol *Molecule) findResidue(r Residue) (int, int) {
	for ic, chain := range mol.Chains {
		for i, d := range chain {
			if d.Backbone.residueKey() == r.key() {
				return ic, i
			}
		}
	}
	return -1, -1
}

// tagRange marks descriptors from init to term with typ. The last one
// gets EndOfSegment. If term is never found, the chain end is taken as
// the end. It says if init was found.
func (mol *Molecule) tagRange(init, term Residue, typ StructureType) (found, endFound bool) {
	ic, i := mol.findResidue(init)
	if ic < 0 {
		return false, false
	}
	chain := mol.Chains[ic]
	for ; i < len(chain); i++ {
		d := chain[i]
		d.Type = typ
		if d.Backbone.residueKey() == term.key() {
			d.EndOfSegment = true
			return true, true
		}
	}
	chain[len(chain)-1].EndOfSegment = true
	return true, false
}

func (ps *parseState) tagHelices() {
	for _, h := range ps.mol.Helices {
		ps.tag(h.Init, h.Term, AlphaHelix, "helix")
	}
}

func (ps *parseState) tagSheets() {
	for _, s := range ps.mol.Sheets {
		ps.tag(s.Init, s.Term, BetaSheet, "strand")
	}
}

func (ps *parseState) tag(init, term Residue, typ StructureType, what string) {
	found, endFound := ps.mol.tagRange(init, term, typ)
	switch {
	case !found:
		ps.log.WithFields(logrus.Fields{
			"chain": string(init.ChainID), "residue": init.Seq,
		}).Warn(what + " start residue not found")
	case !endFound:
		ps.log.WithFields(logrus.Fields{
			"chain": string(term.ChainID), "residue": term.Seq,
		}).Warn(what + " end residue not found")
	}
}
