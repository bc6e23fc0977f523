package secrets

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/joho/godotenv"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
)

// Source looks up raw secret values by logical key.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads secrets from the process environment.
type EnvSource struct{}

// NewEnvSource returns an environment-backed source, optionally
// preloading .env files first. Missing files are an error; a dev
// environment that names a file expects it to exist.
func NewEnvSource(dotenvFiles ...string) (EnvSource, error) {
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil {
			return EnvSource{}, errors.InvalidConfig(file, "loading env file: "+err.Error())
		}
	}
	return EnvSource{}, nil
}

func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// StaticSource is a fixed key-value source, used in tests and for
// injected secrets.
type StaticSource map[string]string

func (s StaticSource) Lookup(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Value is a resolved secret. It redacts itself in any formatted
// output; callers must use Reveal to get the raw value.
type Value struct {
	Key string
	raw string
}

// Reveal returns the raw secret value.
func (v Value) Reveal() string { return v.raw }

func (v Value) String() string { return v.Key + "=***" }

// GoString keeps %#v output redacted as well.
func (v Value) GoString() string { return fmt.Sprintf("secrets.Value{Key:%q}", v.Key) }

// Bundle holds the resolved secrets for one run.
type Bundle map[string]Value

// Get returns the raw value for a key.
func (b Bundle) Get(key string) (string, bool) {
	v, ok := b[key]
	return v.raw, ok
}

// MustGet returns the raw value for a key the resolver guaranteed.
func (b Bundle) MustGet(key string) string {
	v, ok := b[key]
	if !ok {
		panic("secrets: key not in bundle: " + key)
	}
	return v.raw
}

// Keys returns the resolved keys in sorted order.
func (b Bundle) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolver resolves secret requirements against a source, applying the
// environment's declared patterns.
type Resolver struct {
	source Source
	specs  *config.SecretsFile
}

// NewResolver creates a resolver. specs may be nil when the
// environment declares no secrets file.
func NewResolver(source Source, specs *config.SecretsFile) *Resolver {
	return &Resolver{source: source, specs: specs}
}

// Resolve looks up every requirement and returns the complete bundle,
// or a single aggregated error listing all missing required keys and
// all values that failed their pattern. A requirement's own pattern
// takes precedence over the declared one.
func (r *Resolver) Resolve(reqs []config.SecretRequirement) (Bundle, error) {
	bundle := make(Bundle, len(reqs))
	var missing, invalid []string

	for _, req := range reqs {
		spec, declared := r.specs.Spec(req.Key)

		required := req.IsRequired()
		if declared && !spec.IsRequired() && req.Required == nil {
			required = false
		}
		pattern := req.Pattern
		if pattern == "" {
			pattern = spec.Pattern
		}

		raw, ok := r.source.Lookup(req.Key)
		if !ok || raw == "" {
			if required {
				missing = append(missing, req.Key)
			}
			continue
		}

		if pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, errors.InvalidConfig(
					"secret "+req.Key,
					fmt.Sprintf("invalid pattern %q: %v", pattern, err),
				)
			}
			if !re.MatchString(raw) {
				invalid = append(invalid, req.Key)
				continue
			}
		}

		bundle[req.Key] = Value{Key: req.Key, raw: raw}
	}

	if len(missing) > 0 || len(invalid) > 0 {
		sort.Strings(missing)
		sort.Strings(invalid)
		return nil, errors.MissingSecrets(missing, invalid)
	}
	return bundle, nil
}

// ResolveForPipelines resolves the union of requirements for a set of
// pipelines. Duplicate keys collapse; the first pipeline's declaration
// wins, matching PipelineSpec.SecretRequirements precedence.
func (r *Resolver) ResolveForPipelines(specs []*config.PipelineSpec) (Bundle, error) {
	seen := make(map[string]bool)
	var all []config.SecretRequirement
	for _, spec := range specs {
		for _, req := range spec.SecretRequirements() {
			if seen[req.Key] {
				continue
			}
			seen[req.Key] = true
			all = append(all, req)
		}
	}
	return r.Resolve(all)
}

// ValidateDeclared checks every secret declared in the environment's
// secrets file, independent of any job. Used by the validate command.
func (r *Resolver) ValidateDeclared() error {
	if r.specs == nil {
		return nil
	}
	keys := make([]string, 0, len(r.specs.Secrets))
	for key := range r.specs.Secrets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	reqs := make([]config.SecretRequirement, 0, len(keys))
	for _, key := range keys {
		reqs = append(reqs, config.SecretRequirement{Key: key})
	}
	_, err := r.Resolve(reqs)
	return err
}
