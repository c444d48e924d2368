// Package projection derives the renderable view of the catalog and its
// download jobs. It only reads from the job table.
package projection

import (
	"slices"
	"sync"

	"github.com/ytget/soft-downloader/internal/model"
)

// JobSource is the read side of the download orchestrator
type JobSource interface {
	ListJobs() []model.DownloadJob
	OnUpdate(fn func(model.DownloadJob)) func()
}

// Row is one product line of the view: a job for the product, or the
// product alone when it has no jobs
type Row struct {
	Product model.Product
	Job     *model.DownloadJob
}

// Snapshot is an immutable view: catalog rows in catalog order with one row
// per job, followed by rows for jobs whose product is no longer in the catalog
type Snapshot struct {
	Rows []Row
}

// Active returns the number of rows whose job is still running
func (s Snapshot) Active() int {
	n := 0
	for _, r := range s.Rows {
		if r.Job != nil && r.Job.Status.IsActive() {
			n++
		}
	}
	return n
}

// Projector builds snapshots and pushes them to listeners on every change
type Projector struct {
	jobs JobSource

	mu      sync.Mutex
	catalog []model.Product

	listenersMu  sync.Mutex
	listeners    map[int]func(Snapshot)
	nextListener int

	detach func()
}

// NewProjector creates a projector reading from jobs
func NewProjector(jobs JobSource) *Projector {
	p := &Projector{
		jobs:      jobs,
		listeners: make(map[int]func(Snapshot)),
	}
	p.detach = jobs.OnUpdate(func(model.DownloadJob) { p.publish() })
	return p
}

// SetCatalog replaces the product list and pushes a new snapshot
func (p *Projector) SetCatalog(products []model.Product) {
	p.mu.Lock()
	p.catalog = slices.Clone(products)
	p.mu.Unlock()

	p.publish()
}

// Catalog returns the current product list
func (p *Projector) Catalog() []model.Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.catalog)
}

// Snapshot builds the current view from a single read of the job table
func (p *Projector) Snapshot() Snapshot {
	p.mu.Lock()
	catalog := slices.Clone(p.catalog)
	p.mu.Unlock()

	return build(catalog, p.jobs.ListJobs())
}

// Subscribe registers fn to receive every new snapshot; the returned func unregisters it
func (p *Projector) Subscribe(fn func(Snapshot)) func() {
	p.listenersMu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = fn
	p.listenersMu.Unlock()

	return func() {
		p.listenersMu.Lock()
		delete(p.listeners, id)
		p.listenersMu.Unlock()
	}
}

// Close stops following job updates
func (p *Projector) Close() {
	if p.detach != nil {
		p.detach()
	}
}

func (p *Projector) publish() {
	p.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenersMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snap := p.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// build emits one row per job. Jobs for a catalog product follow that
// product's position in creation order; a product without jobs gets a single
// row with a nil Job. Jobs whose product left the catalog come last.
func build(catalog []model.Product, jobs []model.DownloadJob) Snapshot {
	byProduct := make(map[model.Product][]int, len(jobs))
	for i, job := range jobs {
		byProduct[job.Product] = append(byProduct[job.Product], i)
	}

	rows := make([]Row, 0, len(catalog)+len(jobs))
	placed := make(map[model.Product]bool, len(catalog))
	for _, product := range catalog {
		idx := byProduct[product]
		if placed[product] || len(idx) == 0 {
			rows = append(rows, Row{Product: product})
			continue
		}
		placed[product] = true
		for _, i := range idx {
			job := jobs[i]
			rows = append(rows, Row{Product: product, Job: &job})
		}
	}

	for i := range jobs {
		if placed[jobs[i].Product] {
			continue
		}
		job := jobs[i]
		rows = append(rows, Row{Product: job.Product, Job: &job})
	}

	return Snapshot{Rows: rows}
}
