package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/ingestkit/ingestkit/errors"
)

// Snapshot is one environment's full configuration, loaded at a point
// in time. Runs operate on a snapshot and never see later edits.
type Snapshot struct {
	Environment Environment
	Jobs        map[string]*JobDefinition
	Pipelines   map[string]*PipelineSpec
	Triggers    map[string]*TriggerDefinition
	Secrets     *SecretsFile
}

// LoadSnapshot reads <root>/<env> into a validated Snapshot. Defaults
// are applied before validation, and cross references (job -> pipeline,
// trigger -> job) are checked so later stages can assume they resolve.
func LoadSnapshot(root string, env Environment) (*Snapshot, error) {
	base := filepath.Join(root, env.String())
	if _, err := os.Stat(base); err != nil {
		return nil, errors.InvalidConfig(base, "environment directory not found")
	}

	s := &Snapshot{
		Environment: env,
		Jobs:        make(map[string]*JobDefinition),
		Pipelines:   make(map[string]*PipelineSpec),
		Triggers:    make(map[string]*TriggerDefinition),
	}

	if err := loadDir(filepath.Join(base, "pipelines"), func(path string) error {
		var p PipelineSpec
		if err := unmarshalFile(path, &p); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return errors.InvalidConfig(path, err.Error())
		}
		if _, dup := s.Pipelines[p.Name]; dup {
			return errors.InvalidConfig(path, fmt.Sprintf("duplicate pipeline name %q", p.Name))
		}
		s.Pipelines[p.Name] = &p
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadDir(filepath.Join(base, "jobs"), func(path string) error {
		var j JobDefinition
		if err := unmarshalFile(path, &j); err != nil {
			return err
		}
		j.ApplyDefaults()
		if err := j.Validate(); err != nil {
			return errors.InvalidConfig(path, err.Error())
		}
		if _, dup := s.Jobs[j.Name]; dup {
			return errors.InvalidConfig(path, fmt.Sprintf("duplicate job name %q", j.Name))
		}
		s.Jobs[j.Name] = &j
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadDir(filepath.Join(base, "triggers"), func(path string) error {
		var t TriggerDefinition
		if err := unmarshalFile(path, &t); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return errors.InvalidConfig(path, err.Error())
		}
		if _, dup := s.Triggers[t.Name]; dup {
			return errors.InvalidConfig(path, fmt.Sprintf("duplicate trigger name %q", t.Name))
		}
		s.Triggers[t.Name] = &t
		return nil
	}); err != nil {
		return nil, err
	}

	secretsPath := filepath.Join(base, "secrets.yaml")
	if _, err := os.Stat(secretsPath); err == nil {
		var f SecretsFile
		if err := unmarshalFile(secretsPath, &f); err != nil {
			return nil, err
		}
		s.Secrets = &f
	}

	if err := s.checkReferences(); err != nil {
		return nil, err
	}
	return s, nil
}

// checkReferences verifies that every cross reference in the snapshot
// resolves to a defined object.
func (s *Snapshot) checkReferences() error {
	for _, name := range s.JobNames() {
		job := s.Jobs[name]
		for _, ref := range job.Pipelines {
			if _, ok := s.Pipelines[ref.Name]; !ok {
				return errors.InvalidConfig(
					"job "+name,
					fmt.Sprintf("references undefined pipeline %q", ref.Name),
				)
			}
		}
		for _, dep := range job.Dependencies {
			if _, ok := s.Jobs[dep]; !ok {
				return errors.InvalidConfig(
					"job "+name,
					fmt.Sprintf("depends on undefined job %q", dep),
				)
			}
		}
	}
	for _, t := range s.Triggers {
		if t.Job == WildcardJob {
			continue
		}
		if _, ok := s.Jobs[t.Job]; !ok {
			return errors.InvalidConfig(
				"trigger "+t.Name,
				fmt.Sprintf("targets undefined job %q", t.Job),
			)
		}
	}
	return nil
}

// Job returns a job definition by name.
func (s *Snapshot) Job(name string) (*JobDefinition, error) {
	j, ok := s.Jobs[name]
	if !ok {
		return nil, errors.JobNotFound(name)
	}
	return j, nil
}

// Pipeline returns a pipeline spec by name.
func (s *Snapshot) Pipeline(name string) (*PipelineSpec, error) {
	p, ok := s.Pipelines[name]
	if !ok {
		return nil, errors.PipelineNotFound(name)
	}
	return p, nil
}

// JobNames returns all job names in sorted order.
func (s *Snapshot) JobNames() []string {
	names := make([]string, 0, len(s.Jobs))
	for name := range s.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadDir applies fn to every .yaml/.yml file directly under dir. A
// missing directory is not an error; an environment may define no
// triggers at all.
func loadDir(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.InvalidConfig(dir, err.Error())
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := fn(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.InvalidConfig(path, err.Error())
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.InvalidConfig(path, "parsing: "+err.Error())
	}
	return nil
}
