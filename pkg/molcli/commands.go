package molcli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/andrew-torda/molcache/disklru"
	"github.com/andrew-torda/molcache/fetch"
	"github.com/andrew-torda/molcache/pdb"
)

var errSomeFailed = errors.New("some structures could not be loaded")

// summary is one line about one molecule.
func summary(w io.Writer, mol *pdb.Molecule, st pdb.Stats) {
	fmt.Fprintf(w, "%s\tatoms %d\thetatm %d\tbonds %d\thelices %d\tsheets %d\tchains %d\tskipped %d\n",
		mol.Name, st.Atoms, st.Hetatms, mol.NBonds(), len(mol.Helices), len(mol.Sheets),
		len(mol.Chains), st.Skipped)
}

func (a *App) parser(hydrogens, center bool) *pdb.Parser {
	return pdb.NewParser(
		pdb.WithLogger(a.log),
		pdb.WithHydrogens(hydrogens || a.cfg.Hydrogens),
		pdb.WithCentering(center))
}

func (a *App) openCache() (*disklru.Cache, error) {
	return fetch.OpenCache(a.cfg.CacheDir, a.cfg.CacheBytes(), a.log)
}

func (a *App) fetchCmd() *cobra.Command {
	var hydrogens, center bool
	var archive string
	cmd := &cobra.Command{
		Use:   "fetch id...",
		Short: "Get structures from the cache or a local PDB archive and parse them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()
			dl := a.Downloader
			if dl == nil {
				if archive == "" {
					archive = a.cfg.Archive
				}
				if archive == "" {
					return fmt.Errorf("%w: set archive in the config file or use --archive", fetch.ErrNoArchive)
				}
				dl = fetch.NewArchiveDownloader(archive, a.log)
			}
			f, err := fetch.New(cache, dl, fetch.WithLogger(a.log), fetch.WithParser(a.parser(hydrogens, center)))
			if err != nil {
				return err
			}
			return a.fetchAll(cmd.Context(), f, args)
		},
	}
	cmd.Flags().BoolVar(&hydrogens, "hydrogens", false, "keep hydrogen atoms")
	cmd.Flags().BoolVar(&center, "center", true, "move the molecule to the origin")
	cmd.Flags().StringVar(&archive, "archive", "", "top of a local PDB archive, overrides the config")
	return cmd
}

// fetchAll hands the ids to a background worker and prints what comes
// back, in order.
func (a *App) fetchAll(ctx context.Context, f *fetch.Fetcher, ids []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	w := fetch.NewWorker(f, len(ids))
	go w.Run(ctx)
	for _, id := range ids {
		w.Requests() <- fetch.Request{ID: id}
	}
	close(w.Requests())
	nfail := 0
	for r := range w.Results() {
		if r.Err != nil {
			fmt.Fprintf(a.Err, "%s: %v\n", r.ID, r.Err)
			nfail++
			continue
		}
		summary(a.Out, r.Mol, r.Stats)
	}
	if nfail > 0 {
		return fmt.Errorf("%w: %d of %d", errSomeFailed, nfail, len(ids))
	}
	return nil
}

func (a *App) parseCmd() *cobra.Command {
	var hydrogens, center, alloc bool
	cmd := &cobra.Command{
		Use:   "parse file...",
		Short: "Parse local PDB files, compressed or not",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.parser(hydrogens, center)
			mol := pdb.NewMolecule()
			nfail := 0
			for _, fname := range args {
				st, err := p.ParseFile(fname, mol)
				if err != nil {
					fmt.Fprintf(a.Err, "%s: %v\n", fname, err)
					nfail++
					continue
				}
				summary(a.Out, mol, st)
				if alloc {
					fmt.Fprintf(a.Out, "\tbond buffer %s\tsphere buffer %s\tribbon buffer %s\n",
						humanize.Bytes(uint64(mol.BondAllocation(mol.GeometrySlices))),
						humanize.Bytes(uint64(mol.SphereAllocation(mol.SphereSlices))),
						humanize.Bytes(uint64(mol.RibbonAllocation(mol.RibbonSlices))))
				}
			}
			if nfail > 0 {
				return fmt.Errorf("%w: %d of %d", errSomeFailed, nfail, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&hydrogens, "hydrogens", false, "keep hydrogen atoms")
	cmd.Flags().BoolVar(&center, "center", false, "move the molecule to the origin")
	cmd.Flags().BoolVar(&alloc, "alloc", false, "print the size of the render buffers")
	return cmd
}

func (a *App) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Look at or change the structure cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stat",
		Short: "Say what is in the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()
			fmt.Fprintf(a.Out, "dir\t%s\nentries\t%d\nsize\t%s\nmax\t%s\n", cache.Dir(), cache.Len(),
				humanize.Bytes(uint64(cache.Size())), humanize.Bytes(uint64(cache.MaxSize())))
			return nil
		},
	}, &cobra.Command{
		Use:   "rm id...",
		Short: "Remove structures from the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			defer cache.Close()
			for _, id := range args {
				key, err := fetch.NormID(id)
				if err != nil {
					return err
				}
				ok, err := cache.Remove(key)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(a.Err, "%s: not in cache\n", key)
				}
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Throw away the whole cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := a.openCache()
			if err != nil {
				return err
			}
			return cache.Delete()
		},
	})
	return cmd
}

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [file]",
		Short: "Write the current configuration to file (default molcache.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "molcache.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := a.cfg.Write(path); err != nil {
				return err
			}
			fmt.Fprintln(a.Out, "wrote", path)
			return nil
		},
	})
	return cmd
}
