package graph

import (
	"github.com/ingestkit/ingestkit/config"
)

// FromJob builds the pipeline dependency graph for one job. Every
// referenced pipeline becomes a node, disabled ones included, so that
// transitive ordering through a disabled pipeline is preserved. The
// returned graph is validated.
func FromJob(job *config.JobDefinition) (*Graph, error) {
	g := New("job " + job.Name)
	for _, ref := range job.Pipelines {
		g.AddNode(ref.Name)
	}
	for _, ref := range job.Pipelines {
		for _, dep := range ref.DependsOn {
			g.AddDependency(ref.Name, dep)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromSnapshotJobs builds the job-to-job dependency graph of a
// snapshot. The returned graph is validated.
func FromSnapshotJobs(s *config.Snapshot) (*Graph, error) {
	g := New("environment " + s.Environment.String())
	for name := range s.Jobs {
		g.AddNode(name)
	}
	for name, job := range s.Jobs {
		for _, dep := range job.Dependencies {
			g.AddDependency(name, dep)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
