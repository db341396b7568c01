package workload

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/go-json-experiment/json"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/registry"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// File is the on-disk description of one frame's jobs.
type File struct {
	Name string    `json:"name"`
	Jobs []JobSpec `json:"jobs"`
}

// JobSpec describes a single job.
type JobSpec struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Deps   []string       `json:"deps,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Workload is a parsed file with its jobs built.
type Workload struct {
	Name string
	Jobs []domain.Job
}

// Load reads and builds the workload at path.
func Load(path string, jobs registry.JobFactory) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	w, err := Parse(data, jobs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a workload document and builds each job through the
// factory. Unknown members are rejected.
func Parse(data []byte, jobs registry.JobFactory) (*Workload, error) {
	var f File
	if err := json.Unmarshal(data, &f, json.RejectUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	return f.Build(jobs)
}

// Build constructs the jobs of f.
func (f *File) Build(jobs registry.JobFactory) (*Workload, error) {
	w := &Workload{Name: f.Name, Jobs: make([]domain.Job, 0, len(f.Jobs))}
	for i, js := range f.Jobs {
		if js.ID == "" {
			return nil, fmt.Errorf("job %d: missing id", i)
		}
		kind := js.Kind
		if kind == "" {
			kind = registry.KindNoop
		}
		deps := make([]domain.JobID, len(js.Deps))
		for j, d := range js.Deps {
			deps[j] = domain.JobID(d)
		}
		job, err := jobs.Build(kind, registry.Spec{
			ID:     domain.JobID(js.ID),
			Deps:   deps,
			Params: js.Params,
		})
		if err != nil {
			return nil, err
		}
		w.Jobs = append(w.Jobs, job)
	}
	return w, nil
}

// Random generates an acyclic workload of n jobs. Each job depends on up to
// maxDeps jobs generated before it. The same seed yields the same file.
func Random(n, maxDeps int, seed uint64) *File {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f := &File{Name: fmt.Sprintf("random-%d-%d", n, seed), Jobs: make([]JobSpec, n)}
	for i := range n {
		js := JobSpec{
			ID:     fmt.Sprintf("job-%04d", i),
			Kind:   registry.KindSpin,
			Params: map[string]any{"iterations": float64(1000 + r.IntN(20000))},
		}
		if i > 0 && maxDeps > 0 {
			k := r.IntN(min(maxDeps, i) + 1)
			seen := make(map[int]bool, k)
			for range k {
				d := r.IntN(i)
				if seen[d] {
					continue
				}
				seen[d] = true
				js.Deps = append(js.Deps, fmt.Sprintf("job-%04d", d))
			}
		}
		f.Jobs[i] = js
	}
	return f
}
