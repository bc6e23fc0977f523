package plan

import (
	"sort"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/graph"
)

// Item is one scheduled pipeline inside a wave.
type Item struct {
	Ref      config.PipelineRef
	Disabled bool
}

// Wave is a set of pipelines that may run concurrently. The next wave
// starts only after every item in this one has finished.
type Wave []Item

// Plan is the ordered execution layout for one job run.
type Plan struct {
	Job   string
	Mode  config.ExecutionMode
	Waves []Wave
}

// PipelineCount returns the total number of scheduled items.
func (p *Plan) PipelineCount() int {
	n := 0
	for _, w := range p.Waves {
		n += len(w)
	}
	return n
}

// EnabledCount returns the number of items that will actually execute.
func (p *Plan) EnabledCount() int {
	n := 0
	for _, w := range p.Waves {
		for _, item := range w {
			if !item.Disabled {
				n++
			}
		}
	}
	return n
}

// Build lays the job's pipelines out into waves according to its
// execution mode. The graph must be the validated pipeline graph of
// the same job.
func Build(job *config.JobDefinition, g *graph.Graph) (*Plan, error) {
	p := &Plan{Job: job.Name, Mode: job.Execution.Mode}

	switch job.Execution.Mode {
	case config.ModeSequential:
		for _, item := range sortedItems(job.Pipelines) {
			p.Waves = append(p.Waves, Wave{item})
		}

	case config.ModeParallel:
		if items := sortedItems(job.Pipelines); len(items) > 0 {
			p.Waves = []Wave{items}
		}

	case config.ModeDAG:
		levels, err := g.Levels()
		if err != nil {
			return nil, err
		}
		for _, level := range levels {
			wave := make(Wave, 0, len(level))
			for _, name := range level {
				ref, ok := job.Pipeline(name)
				if !ok {
					return nil, errors.PipelineNotFound(name)
				}
				wave = append(wave, Item{Ref: ref, Disabled: !ref.IsEnabled()})
			}
			sortWave(wave)
			p.Waves = append(p.Waves, wave)
		}

	default:
		return nil, errors.Validation("job " + job.Name + ": unknown execution mode " + string(job.Execution.Mode))
	}

	return p, nil
}

// sortedItems converts refs to items ordered by (order, name).
func sortedItems(refs []config.PipelineRef) Wave {
	items := make(Wave, 0, len(refs))
	for _, ref := range refs {
		items = append(items, Item{Ref: ref, Disabled: !ref.IsEnabled()})
	}
	sortWave(items)
	return items
}

func sortWave(w Wave) {
	sort.SliceStable(w, func(i, j int) bool {
		if w[i].Ref.Order != w[j].Ref.Order {
			return w[i].Ref.Order < w[j].Ref.Order
		}
		return w[i].Ref.Name < w[j].Ref.Name
	})
}
