package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/upbeatlab/chatrelay/pkg/transport"
)

// Deployment environments.
const (
	// EnvDevelopment is a local checkout talking to a backend on loopback.
	EnvDevelopment = "development"

	// EnvCompose runs next to the backend in a container network.
	EnvCompose = "compose"

	// EnvOpenShift sits behind a router that buffers client streams, so the
	// stream is proxied server-side.
	EnvOpenShift = "openshift"
)

// Deployment is the resolved, immutable description of where the backend is
// and how turns are streamed from it. It is computed once at startup and
// passed around as data.
type Deployment struct {
	Env        string
	Mode       transport.Strategy
	BackendURL string
}

var environments = map[string]Deployment{
	EnvDevelopment: {Env: EnvDevelopment, Mode: transport.StrategyDirect, BackendURL: "http://127.0.0.1:8000"},
	EnvCompose:     {Env: EnvCompose, Mode: transport.StrategyDirect, BackendURL: "http://api:8000"},
	EnvOpenShift:   {Env: EnvOpenShift, Mode: transport.StrategyProxied, BackendURL: "http://upbeat-backend:8000"},
}

// Environments returns the known deployment environment names, sorted.
func Environments() []string {
	names := make([]string, 0, len(environments))
	for name := range environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinEnvironments() string {
	return strings.Join(Environments(), ", ")
}

// ResolveDeployment derives the Deployment for env. A non-empty mode or
// backendURL overrides the environment's default. An empty env means
// development.
func ResolveDeployment(env, mode, backendURL string) (Deployment, error) {
	if env == "" {
		env = defaultEnv
	}

	d, ok := environments[strings.ToLower(env)]
	if !ok {
		return Deployment{}, fmt.Errorf("unknown deployment environment %q (available: %s)", env, joinEnvironments())
	}

	if mode != "" {
		strategy, err := transport.ParseStrategy(mode)
		if err != nil {
			return Deployment{}, err
		}
		d.Mode = strategy
	}

	if backendURL != "" {
		d.BackendURL = strings.TrimRight(backendURL, "/")
	}

	return d, nil
}
