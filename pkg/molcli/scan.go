package molcli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/andrew-torda/molcache/brokenio"
	"github.com/andrew-torda/molcache/pdb"
	"github.com/andrew-torda/molcache/pdb/zwrap"
)

// scanResult is what one reader found.
type scanResult struct {
	nfile int
	nfail int
	natom int
	nbyte int64
	names nummap // nil unless atom names are being counted
}

func (r *scanResult) add(o scanResult) {
	r.nfile += o.nfile
	r.nfail += o.nfail
	r.natom += o.natom
	r.nbyte += o.nbyte
	if o.names != nil {
		if r.names == nil {
			r.names = make(nummap)
		}
		r.names.merge(o.names)
	}
}

type scanOpts struct {
	nReader int
	maxDir  int
	broken  bool
	cpuprof string
	attypes string
}

func (a *App) scanCmd() *cobra.Command {
	var opts scanOpts
	cmd := &cobra.Command{
		Use:   "scan dir",
		Short: "Parse every file in a directory tree laid out like the PDB archive",
		Long: `scan parses every file in dir and in the directories directly below
it, which is how the PDB's divided archive is laid out. Several readers
work at once. It is mostly for finding files the parser chokes on and for
timing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cpuprof != "" {
				fprof, err := os.Create(opts.cpuprof)
				if err != nil {
					return err
				}
				defer fprof.Close()
				if err := pprof.StartCPUProfile(fprof); err != nil {
					return err
				}
				defer pprof.StopCPUProfile()
			}
			if opts.nReader < 1 {
				opts.nReader = a.cfg.Workers
			}
			tot, err := a.scan(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "files %d\tfailed %d\tatoms %d\tread %s\n",
				tot.nfile, tot.nfail, tot.natom, humanize.Bytes(uint64(tot.nbyte)))
			if opts.attypes == "" {
				return nil
			}
			if opts.attypes == "-" {
				return printstats(a.Out, tot.names)
			}
			fp, err := os.Create(opts.attypes)
			if err != nil {
				return err
			}
			if err := printstats(fp, tot.names); err != nil {
				fp.Close()
				return err
			}
			return fp.Close()
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.nReader, "readers", "r", 0, "num reader goroutines, default from config")
	f.IntVarP(&opts.maxDir, "dirs", "d", 0, "read at most this many directories, 0 for all")
	f.BoolVarP(&opts.broken, "brokenio", "b", false, "use broken I/O for testing")
	f.StringVar(&opts.cpuprof, "cpuprofile", "", "write cpu profile to file")
	f.StringVar(&opts.attypes, "attypes", "", "write atom name counts as csv to file, - for stdout")
	return cmd
}

// scan sends directory names down a channel to nReader goroutines and
// adds up what they send back.
func (a *App) scan(top string, opts scanOpts) (scanResult, error) {
	entries, err := os.ReadDir(top)
	if err != nil {
		return scanResult{}, err
	}
	dirs := []string{top}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(top, e.Name()))
		}
	}
	if opts.maxDir > 0 && len(dirs) > opts.maxDir {
		dirs = dirs[:opts.maxDir]
	}

	c := make(chan string, len(dirs))
	res := make(chan scanResult)
	go func() {
		for _, d := range dirs {
			c <- d
		}
		close(c)
	}()
	var wg sync.WaitGroup
	for i := 0; i < opts.nReader; i++ {
		wg.Add(1)
		go a.readDirs(c, res, &wg, opts)
	}
	var tot scanResult
	for i := 0; i < opts.nReader; i++ {
		tot.add(<-res)
	}
	wg.Wait()
	return tot, nil
}

// readDirs takes directory names from a channel and parses every
// file in each. One Molecule is reused for all of them.
func (a *App) readDirs(c <-chan string, res chan<- scanResult, wg *sync.WaitGroup, opts scanOpts) {
	defer wg.Done()
	var r scanResult
	if opts.attypes != "" {
		r.names = make(nummap)
	}
	p := a.parser(false, false)
	mol := pdb.NewMolecule()
	for d := range c {
		entries, err := os.ReadDir(d)
		if err != nil {
			a.log.WithError(err).WithField("dir", d).Warn("ignoring")
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			path := filepath.Join(d, e.Name())
			r.nfile++
			nbyte, err := readOne(p, path, mol, opts.broken)
			r.nbyte += nbyte
			if err != nil {
				r.nfail++
				a.log.WithFields(logrus.Fields{"file": path, "error": err}).Warn("parse failed")
				continue
			}
			r.natom += mol.NAtoms()
			if r.names != nil {
				r.names.count(mol)
			}
		}
	}
	res <- r
}

// readOne parses one file. With broken set, reads fail at random so we
// can see the error paths.
func readOne(p *pdb.Parser, path string, mol *pdb.Molecule, broken bool) (int64, error) {
	if !broken {
		fi, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		_, err = p.ParseFile(path, mol)
		return fi.Size(), err
	}
	fp, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	br := brokenio.NewReader(fp)
	br.SetProbFail(0.05)
	br.SetProbZeroFile(0.02)
	zr, err := zwrap.WrapMaybe(br)
	if err != nil {
		br.Close()
		return int64(br.NBytes()), err
	}
	defer zr.Close()
	mol.Name = pdb.IDFromName(path)
	if _, err = p.Parse(zr, mol); err != nil {
		err = fmt.Errorf("broken read: %w", err)
	}
	return int64(br.NBytes()), err
}
