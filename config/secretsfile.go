package config

// SecretSpec documents one logical secret declared for an environment.
// Pattern, when set, is a regular expression the resolved value must
// match.
type SecretSpec struct {
	Description string `yaml:"description" json:"description"`
	Required    *bool  `yaml:"required" json:"required"`
	Pattern     string `yaml:"pattern" json:"pattern"`
}

// IsRequired reports whether the secret must resolve to a value.
func (s SecretSpec) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// SecretsFile is the environment-level secret declaration file. It
// declares which logical keys exist and how their values are
// validated; it never contains secret values.
type SecretsFile struct {
	Secrets map[string]SecretSpec `yaml:"secrets" json:"secrets"`
}

// Spec returns the declaration for a logical key, if present.
func (f *SecretsFile) Spec(key string) (SecretSpec, bool) {
	if f == nil {
		return SecretSpec{}, false
	}
	spec, ok := f.Secrets[key]
	return spec, ok
}
