package core

import "strings"

// Environment is the deployment stage the service runs in. It selects the log
// format and level.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":         Development,
	"development": Development,
	"local":       Development,
	"stage":       Staging,
	"staging":     Staging,
	"test":        Testing,
	"testing":     Testing,
	"prod":        Production,
	"production":  Production,
}

func (e Environment) String() string {
	return string(e)
}

func (e Environment) IsProduction() bool {
	return e == Production
}

// Verbose reports whether debug output (console writer, debug level) is wanted.
func (e Environment) Verbose() bool {
	return e == Development || e == Testing
}

// ParseEnvironment accepts the canonical names and their short forms in any
// case. Anything else is treated as Development.
func ParseEnvironment(v string) Environment {
	if env, ok := environmentAliases[strings.ToLower(strings.TrimSpace(v))]; ok {
		return env
	}
	return Development
}
