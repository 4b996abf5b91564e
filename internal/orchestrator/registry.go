package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// job is the orchestrator's private record of one request.
type job struct {
	id      uuid.UUID
	req     models.JobRequest
	sink    Sink
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	// publishMu guards cancelled and the status write that precedes each
	// Publish. It is never held while the sink runs.
	publishMu sync.Mutex
	cancelled bool

	statusMu sync.RWMutex
	status   models.JobStatus
}

func (j *job) snapshot() models.JobStatus {
	j.statusMu.RLock()
	defer j.statusMu.RUnlock()
	return j.status
}

// registry holds the jobs that are still in progress.
type registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[uuid.UUID]*job)}
}

func (r *registry) add(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.id] = j
}

func (r *registry) get(id uuid.UUID) (*job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// remove reports whether the job was still registered.
func (r *registry) remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	delete(r.jobs, id)
	return ok
}

func (r *registry) list() []*job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}
