package core

import (
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/vos"
)

// NewEnvironment builds a shell's environment from the configuration. base is
// only used when the configuration inherits the environment.
func NewEnvironment(configuration *config.Configuration, base []string) *vos.MapEnv {
	return vos.NewMapEnvFromEnvList(configuration.Environ(base))
}
