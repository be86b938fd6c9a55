// Package location implements the Location Registry (spec §4.2): it
// holds the name -> backend client bindings that config.BuildRegistry
// builds from the configuration, once at startup, and that are never
// mutated at runtime (spec §5 "Shared resources").
package location

import (
	"fmt"

	"github.com/scality/cloudserver/internal/backend"
	apperrors "github.com/scality/cloudserver/internal/errors"
)

// Constraint is one entry of the configured locationConstraints map.
type Constraint struct {
	Name        string
	Type        string // backend.Type* tag
	BucketName  string // remote bucket this location writes into
	BucketMatch bool
}

// Registry maps location name to its instantiated backend.Client and
// retains the Constraint each was built from, for the coherence checks
// the replication handler needs (spec §4.6).
type Registry struct {
	clients     map[string]backend.Client
	constraints map[string]Constraint
}

// New builds an empty registry. Callers populate it with Register before
// any request is served; there is no runtime mutation afterward.
func New() *Registry {
	r := &Registry{
		clients:     make(map[string]backend.Client),
		constraints: make(map[string]Constraint),
	}
	// The `legacy` pseudo-entry exists purely to serve GET/DELETE against
	// records that predate dataStoreName (spec §3, §4.4).
	r.clients[backend.TypeLegacy] = backend.NewMemClient()
	r.constraints[backend.TypeLegacy] = Constraint{Name: backend.TypeLegacy, Type: backend.TypeLegacy}
	return r
}

// Register binds name to client, recording the Constraint it was
// configured from. Registering the same name twice replaces the binding —
// only used at startup while the config file is parsed, never afterward.
func (r *Registry) Register(c Constraint, client backend.Client) {
	r.clients[c.Name] = client
	r.constraints[c.Name] = c
}

// Client returns the backend client for name, or an InvalidArgument-class
// error if name was never registered (spec §4.3).
func (r *Registry) Client(name string) (backend.Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("unregistered location constraint %q", name))
	}
	return c, nil
}

// Constraint returns the configuration a location was registered with.
func (r *Registry) Constraint(name string) (Constraint, bool) {
	c, ok := r.constraints[name]
	return c, ok
}

// Registered reports whether name is a known location.
func (r *Registry) Registered(name string) bool {
	_, ok := r.clients[name]
	return ok
}

// All returns every registered name -> client pairing, used by the
// gateway's aggregated healthcheck partitioning (spec §4.4.1).
func (r *Registry) All() map[string]backend.Client {
	out := make(map[string]backend.Client, len(r.clients))
	for k, v := range r.clients {
		out[k] = v
	}
	return out
}
