package config

import "github.com/ingestkit/ingestkit/errors"

// Environment identifies a deployment environment. Each environment has
// its own configuration subtree and its own secret values.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// ParseEnvironment validates and normalizes an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvDev, EnvStaging, EnvProd:
		return Environment(s), nil
	default:
		return "", errors.Validation("environment must be one of: dev, staging, prod (got: " + s + ")")
	}
}

func (e Environment) String() string { return string(e) }
