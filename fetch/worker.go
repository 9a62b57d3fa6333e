package fetch

import (
	"context"

	"github.com/andrew-torda/molcache/pdb"
)

// Request asks a Worker to load one structure. If Mol is nil, the
// worker makes a new Molecule.
type Request struct {
	ID  string
	Mol *pdb.Molecule
}

// Result is the answer to one Request.
type Result struct {
	ID    string
	Mol   *pdb.Molecule
	Stats pdb.Stats
	Err   error
}

// Worker loads structures in the background. Requests go in one
// channel and exactly one Result per Request comes out of the other,
// in the same order. Somebody has to read the results, or the worker
// stops.
type Worker struct {
	f    *Fetcher
	reqs chan Request
	res  chan Result
}

// NewWorker makes a worker with room for nbuf waiting requests and
// results.
func NewWorker(f *Fetcher, nbuf int) *Worker {
	return &Worker{
		f:    f,
		reqs: make(chan Request, nbuf),
		res:  make(chan Result, nbuf),
	}
}

// Requests is where requests go. Close it to stop the worker.
func (w *Worker) Requests() chan<- Request { return w.reqs }

// Results is closed after the last result.
func (w *Worker) Results() <-chan Result { return w.res }

// Run handles requests until the request channel is closed. With ctx
// cancelled, the remaining requests fail quickly but still get a
// Result each.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.res)
	for req := range w.reqs {
		res := Result{ID: req.ID, Mol: req.Mol}
		if res.Mol == nil {
			res.Mol = pdb.NewMolecule()
		}
		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.Stats, res.Err = w.f.Load(ctx, req.ID, res.Mol)
		}
		if res.Err != nil {
			w.f.log.WithError(res.Err).WithField("id", req.ID).Warn("load failed")
		}
		w.res <- res
	}
}
