package pdb

// minChain is the shortest chain worth a ribbon. Shorter runs are
// usually ligands or fragments.
const minChain = 3

// Nucleotide bases by ring type. The corner atom joins the base to the
// sugar, guide and planar fix the plane of the ring.
var (
	purines     = map[string]bool{"A": true, "G": true, "I": true, "DA": true, "DG": true, "DI": true, "8OG": true}
	pyrimidines = map[string]bool{"C": true, "T": true, "U": true, "DC": true, "DT": true, "DU": true}
)

// chainBuilder collects descriptors, one per residue, and cuts them
// into chains.
type chainBuilder struct {
	mol   *Molecule
	chain []*ChainRenderingDescriptor
	desc  *ChainRenderingDescriptor
}

// endResidue puts the current descriptor on the chain if it has a
// backbone atom. A residue without a guide atom uses its backbone.
func (cb *chainBuilder) endResidue() {
	d := cb.desc
	cb.desc = newDescriptor()
	if d.Backbone == nil {
		return
	}
	if d.Guide == nil {
		d.Guide = d.Backbone
	}
	d.CurveIndex = len(cb.chain)
	cb.chain = append(cb.chain, d)
}

// endChain keeps the chain if it is long enough.
func (cb *chainBuilder) endChain() {
	if len(cb.chain) >= minChain {
		cb.mol.Chains = append(cb.mol.Chains, cb.chain)
		cb.mol.RibbonNodeCount += len(cb.chain)
	}
	cb.chain = nil
}

// add sorts an atom into the descriptor of its residue.
func (d *ChainRenderingDescriptor) add(a *PdbAtom) {
	switch a.Name {
	case "CA":
		d.Backbone = a
	case "O":
		d.Guide = a
	case "N":
		d.Start = a
	case "C":
		d.End = a
	case "C5'":
		d.Backbone = a
		d.Type = Nucleic
	case "C1'":
		d.Guide = a
	case "O5'":
		d.Start = a
	case "O3'":
		d.End = a
	case "C3'":
		d.NucleicEnd = a
	}
	switch {
	case purines[a.ResName]:
		d.NucleicType = Purine
		switch a.Name {
		case "N9":
			d.NucleicCorner = a
		case "C4":
			d.NucleicGuide = a
		case "N7":
			d.NucleicPlanar = a
		}
	case pyrimidines[a.ResName]:
		d.NucleicType = Pyrimidine
		switch a.Name {
		case "N1":
			d.NucleicCorner = a
		case "C2":
			d.NucleicGuide = a
		case "C6":
			d.NucleicPlanar = a
		}
	}
}

// buildChains walks the atoms in file order and makes one descriptor
// per residue that has a CA or C5'. A new chain identifier starts a new
// list. Waters and HETATM records are left out.
func buildChains(mol *Molecule) {
	atoms := mol.AtomsInOrder()
	if len(atoms) == 0 {
		return
	}
	cb := chainBuilder{mol: mol, desc: newDescriptor()}
	prev := atoms[0]
	for _, a := range atoms {
		if !a.sameResidue(prev) {
			cb.endResidue()
		}
		if a.ChainID != prev.ChainID {
			cb.endChain()
		}
		prev = a
		if a.ResName == "HOH" || a.Kind == IsHetatm {
			continue
		}
		cb.desc.add(a)
	}
	cb.endResidue()
	cb.endChain()
}

func newDescriptor() *ChainRenderingDescriptor {
	return &ChainRenderingDescriptor{NucleicType: NotANucleic}
}
