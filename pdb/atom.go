package pdb

import (
	"errors"
	"strconv"
	"strings"
)

// Columns of an ATOM or HETATM record, counting from zero.
const (
	colSerial  = 6  // 7-11
	colName    = 12 // 13-16
	colAltLoc  = 16
	colResName = 17 // 18-20
	colChain   = 21
	colResSeq  = 22 // 23-26
	colICode   = 26
	colX       = 30 // 31-38
	colY       = 38
	colZ       = 46
	colElement = 76 // 77-78
	minAtomLen = 54 // must reach the end of z
)

var errShort = errors.New("line too short")

// nucleicRes are the residue names we take to be DNA or RNA.
var nucleicRes = map[string]bool{
	"A": true, "C": true, "G": true, "T": true, "U": true, "I": true,
	"DA": true, "DC": true, "DG": true, "DT": true, "DU": true, "DI": true,
	"8OG": true,
}

// dropNames have no place in the bond tables.
var dropNames = map[string]bool{"OXT": true, "O5T": true, "O3T": true}

// field cuts out columns [from, to) and trims them.
func field(line string, from, to int) string {
	return strings.TrimSpace(line[from:to])
}

// atoi reads a required integer field.
func (ps *parseState) atoi(line, name string, from, to int) (int, error) {
	s := field(line, from, to)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, &lineError{ps.lineNum, name, line, err}
	}
	return i, nil
}

// atoiOpt is atoi, but a blank field is zero.
func (ps *parseState) atoiOpt(line, name string, from, to int) (int, error) {
	if field(line, from, to) == "" {
		return 0, nil
	}
	return ps.atoi(line, name, from, to)
}

func (ps *parseState) atof(line, name string, from, to int) (float32, error) {
	x, err := strconv.ParseFloat(field(line, from, to), 32)
	if err != nil {
		return 0, &lineError{ps.lineNum, name, line, err}
	}
	return float32(x), nil
}

// atom reads an ATOM or HETATM line. Some atoms are read correctly,
// but dropped on purpose: hydrogens (unless wanted), OXT and friends
// and alternate locations other than A.
func (ps *parseState) atom(line string, kind AtomKind) error {
	if ps.rawLen < minAtomLen {
		return &lineError{ps.lineNum, "atom record", strings.TrimRight(line, " "), errShort}
	}
	a := &PdbAtom{Kind: kind}
	var err error
	if a.Serial, err = ps.atoi(line, "serial", colSerial, colSerial+5); err != nil {
		return err
	}
	a.Name = field(line, colName, colName+4)
	a.AltLoc = line[colAltLoc]
	a.ResName = field(line, colResName, colResName+3)
	a.ChainID = line[colChain]
	if a.ResSeq, err = ps.atoi(line, "residue number", colResSeq, colResSeq+4); err != nil {
		return err
	}
	a.ICode = line[colICode]
	if a.Pos.X, err = ps.atof(line, "x", colX, colX+8); err != nil {
		return err
	}
	if a.Pos.Y, err = ps.atof(line, "y", colY, colY+8); err != nil {
		return err
	}
	if a.Pos.Z, err = ps.atof(line, "z", colZ, colZ+8); err != nil {
		return err
	}
	if a.Name == "" || a.ResName == "" {
		return &lineError{ps.lineNum, "names", line, errors.New("blank atom or residue name")}
	}
	a.Element = strings.ToUpper(field(line, colElement, colElement+2))
	if a.Element == "" {
		a.Element = elementFromName(a.Name)
	}

	switch {
	case (a.Element == "H" || a.Element == "D") && !ps.p.hydrogens,
		dropNames[a.Name],
		a.AltLoc != ' ' && a.AltLoc != 'A':
		ps.stats.Ignored++
		return nil
	}
	if kind == IsAtom && nucleicRes[a.ResName] {
		a.Kind = IsNucleic
	}
	if !ps.mol.addAtom(a) {
		return &lineError{ps.lineNum, "serial", line, errors.New("duplicate serial " + strconv.Itoa(a.Serial))}
	}
	if kind == IsHetatm {
		ps.stats.Hetatms++
		ps.hetBox.Add(a.Pos)
	} else {
		ps.stats.Atoms++
		ps.box.Add(a.Pos)
	}
	return nil
}

// elementFromName guesses the element from the atom name when
// columns 77-78 are empty, as they are in many old files.
func elementFromName(name string) string {
	switch {
	case name == "":
		return ""
	case len(name) == 1:
		return name
	case len(name) == 4, name[0] == 'H':
		return "H"
	case name[0] >= '0' && name[0] <= '9':
		return elementFromName(name[1:]) // "1HB" and friends
	}
	two := name[:2]
	switch two {
	case "CU", "CL", "NA", "SE", "ZN", "FE", "MG", "MN":
		if len(name) == 2 {
			return two
		}
	}
	return name[:1]
}
