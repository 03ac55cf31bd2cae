package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Job is one scheduled maintenance task. Run must be safe to repeat.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job   Job
	every time.Duration
	next  time.Time
}

// Registry holds jobs with their cadence. A freshly added job is due at once.
type Registry struct {
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// Add schedules job every interval. Names are unique because they key the
// distributed lease and the metrics labels.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return errors.New("job required")
	}
	name := job.Name()
	if name == "" {
		return errors.New("job name required")
	}
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	r.entries[name] = &entry{job: job, every: every}
	return nil
}

// Names lists job names sorted for stable logs.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int { return len(r.entries) }

// due returns the entries whose next run is at or before now, by name.
func (r *Registry) due(now time.Time) []*entry {
	var out []*entry
	for _, name := range r.Names() {
		e := r.entries[name]
		if e.next.IsZero() || !now.Before(e.next) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) all() []*entry {
	out := make([]*entry, 0, len(r.entries))
	for _, name := range r.Names() {
		out = append(out, r.entries[name])
	}
	return out
}
