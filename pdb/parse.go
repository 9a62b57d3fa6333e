package pdb

import (
	"bufio"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/andrew-torda/molcache/pdb/geom"
)

const (
	lineWidth = 80
	maxLine   = 1 << 20 // longer lines are skipped
)

// Stats counts what went by during a parse.
type Stats struct {
	Lines   int
	Atoms   int // ATOM records kept, nucleic included
	Hetatms int
	Helices int
	Sheets  int
	Conects int // CONECT records read
	Bonds   int
	Ignored int // atoms we chose to drop: hydrogens, alternates, OXT...
	Skipped int // malformed lines
}

// Parser turns PDB text into a Molecule. A Parser holds no state
// between calls, so one can be shared by goroutines that each have
// their own Molecule.
type Parser struct {
	log       *logrus.Logger
	bonds     BondStrategy
	hydrogens bool
	center    bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sends warnings about bad lines to log. Without it, they
// are thrown away.
func WithLogger(log *logrus.Logger) Option {
	return func(p *Parser) { p.log = log }
}

// WithBondStrategy replaces the default covalent radius bonding.
func WithBondStrategy(b BondStrategy) Option {
	return func(p *Parser) { p.bonds = b }
}

// WithHydrogens keeps hydrogen atoms. Normally they are dropped.
func WithHydrogens(keep bool) Option {
	return func(p *Parser) { p.hydrogens = keep }
}

// WithCentering moves the molecule so the middle of its box is at the
// origin. Otherwise coordinates are left as they are in the file and
// Molecule.Center says where the middle is.
func WithCentering(on bool) Option {
	return func(p *Parser) { p.center = on }
}

// NewParser makes a parser with the defaults, then applies the options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{bonds: CovalentRadius{Tolerance: DfltBondTolerance}}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = discardLogger()
	}
	if p.bonds == nil {
		p.bonds = CovalentRadius{Tolerance: DfltBondTolerance}
	}
	return p
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// parseState is what we carry from one line to the next.
type parseState struct {
	p         *Parser
	mol       *Molecule
	log       *logrus.Entry
	stats     Stats
	lineNum   int
	rawLen    int
	skipToEnd bool     // after ENDMDL we only want CONECT
	box       geom.Box // ATOM records only
	hetBox    geom.Box
	conects   [][2]int
}

// Parse reads PDB records from r into mol. The molecule is cleared
// first. Lines that cannot be read are logged and counted in
// Stats.Skipped. A failing reader gives an *IOError and a file
// without atoms gives ErrEmptyMolecule. In both cases mol holds
// whatever was read.
func (p *Parser) Parse(r io.Reader, mol *Molecule) (Stats, error) {
	mol.ClearLists()
	mol.DisplayHydrogens = p.hydrogens
	ps := &parseState{
		p:   p,
		mol: mol,
		log: p.log.WithField("molecule", mol.Name),
	}
	br := bufio.NewReader(r)
	var buf []byte
	for {
		line, tooLong, err := readLine(br, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			ps.stats.Lines = ps.lineNum
			return ps.stats, &IOError{Name: mol.Name, Line: ps.lineNum, Err: err}
		}
		buf = line
		ps.lineNum++
		if tooLong {
			ps.stats.Skipped++
			ps.log.WithField("line", ps.lineNum).Warn("line too long")
			continue
		}
		ps.doLine(string(line))
	}
	ps.stats.Lines = ps.lineNum
	if len(mol.Atoms) == 0 {
		return ps.stats, ErrEmptyMolecule
	}
	ps.finish()
	return ps.stats, nil
}

// readLine reads one line into buf, without the line end. A line
// longer than maxLine is read to its end and thrown away, with tooLong
// set.
func readLine(br *bufio.Reader, buf []byte) (line []byte, tooLong bool, err error) {
	buf = buf[:0]
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(buf)+len(frag) > maxLine {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, frag...)
			}
		}
		if !isPrefix {
			return buf, tooLong, nil
		}
	}
}

// doLine sends one line to the reader for its record type.
func (ps *parseState) doLine(line string) {
	line = strings.TrimRight(line, "\r")
	if len(line) < 3 {
		return
	}
	ps.rawLen = len(line)
	if len(line) < lineWidth {
		line = line + strings.Repeat(" ", lineWidth-len(line))
	}
	var err error
	switch rec := strings.TrimSpace(line[0:6]); {
	case rec == "CONECT":
		err = ps.conect(line)
	case ps.skipToEnd:
		return
	case rec == "ATOM":
		err = ps.atom(line, IsAtom)
	case rec == "HETATM":
		err = ps.atom(line, IsHetatm)
	case rec == "HELIX":
		err = ps.helix(line)
	case rec == "SHEET":
		err = ps.sheet(line)
	case rec == "HEADER":
		if ps.mol.Name == "" {
			ps.mol.Name = strings.ToLower(strings.TrimSpace(line[62:66]))
		}
	case rec == "ENDMDL":
		ps.skipToEnd = true
	}
	if err != nil {
		ps.stats.Skipped++
		ps.log.WithField("line", ps.lineNum).Warn(err)
	}
}

// finish does everything that needs the whole file: the bounding
// box, bonds, chains and secondary structure.
// HETATM records only make the box if there is nothing else.
func (ps *parseState) finish() {
	mol := ps.mol
	box := &ps.box
	if box.N() == 0 {
		box = &ps.hetBox
	}
	mol.Center = box.Center()
	mol.DcOffset = box.Diagonal()
	if ps.p.center {
		for _, a := range mol.Atoms {
			a.Pos = a.Pos.Sub(mol.Center)
		}
		mol.Centered = true
	}

	ps.conectBonds()
	n := ps.p.bonds.InferBonds(mol, ps.log)
	ps.log.WithFields(logrus.Fields{"conect": len(mol.Bonds) - n, "inferred": n}).Debug("bonds")
	ps.stats.Bonds = len(mol.Bonds)

	buildChains(mol)
	ps.tagHelices()
	ps.tagSheets()
}

// Parse reads a molecule from r with a default parser.
func Parse(r io.Reader, mol *Molecule) (Stats, error) {
	return NewParser().Parse(r, mol)
}
