package molcli

import (
	"fmt"
	"io"
	"sort"

	"github.com/andrew-torda/molcache/pdb"
)

// nummap counts how often each atom name turns up. Each reader has
// its own, and they are merged at the end.
type nummap map[string]int

func (nm nummap) count(mol *pdb.Molecule) {
	for _, a := range mol.Atoms {
		nm[a.Name]++
	}
}

func (nm nummap) merge(o nummap) {
	for k, v := range o {
		nm[k] += v
	}
}

// printstats writes csv, most common name first. Ties go alphabetically
// so the output does not depend on map order.
func printstats(w io.Writer, nm nummap) error {
	type npair struct {
		name string
		n    int
	}
	pairs := make([]npair, 0, len(nm))
	for k, v := range nm {
		pairs = append(pairs, npair{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].n != pairs[j].n {
			return pairs[i].n > pairs[j].n
		}
		return pairs[i].name < pairs[j].name
	})
	if _, err := fmt.Fprintln(w, `"name","n"`); err != nil {
		return err
	}
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%q,%d\n", p.name, p.n); err != nil {
			return err
		}
	}
	return nil
}
