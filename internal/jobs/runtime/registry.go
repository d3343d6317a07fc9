package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
)

type Handler interface {
	Type() jobs.JobType
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[jobs.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[jobs.JobType]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if !t.Valid() {
		return fmt.Errorf("handler has unknown job type %q", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType jobs.JobType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types lists registered job types in sorted order.
func (r *Registry) Types() []jobs.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]jobs.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
