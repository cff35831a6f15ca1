package principal

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"
)

var log = logger.GetLogger("principal")

var (
	// ErrEmptyPrincipal is returned for the empty principal
	ErrEmptyPrincipal = errors.New("principal: empty principal")
	// ErrUnknownPrincipal is returned when a principal is not registered
	ErrUnknownPrincipal = errors.New("principal: unknown principal")
)

// IResolver validates a principal and returns its canonical identity.
// Lock ownership is always compared on the resolved identity.
type IResolver interface {
	Resolve(p record.Principal) (record.Principal, error)
}

// --------------------------------------------------------------------------
// AnyResolver
// --------------------------------------------------------------------------

// AnyResolver accepts every non-empty principal. Surrounding whitespace is trimmed.
type AnyResolver struct{}

func (AnyResolver) Resolve(p record.Principal) (record.Principal, error) {
	id := record.Principal(strings.TrimSpace(string(p)))
	if id.IsZero() {
		return "", ErrEmptyPrincipal
	}
	return id, nil
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Entry is a registered principal. Name is only for display.
type Entry struct {
	ID   record.Principal `yaml:"id" json:"id"`
	Name string           `yaml:"name" json:"name"`
}

// Registry resolves principals against a fixed set of registered identities.
// It is safe for concurrent use, entries can be added and removed while it serves lookups.
type Registry struct {
	entries *xsync.MapOf[record.Principal, Entry]
}

// NewRegistry creates a registry holding the given entries
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: xsync.NewMapOf[record.Principal, Entry]()}
	for _, e := range entries {
		r.Add(e)
	}
	return r
}

// Add registers or replaces an entry. Entries with an empty id are ignored.
func (r *Registry) Add(e Entry) {
	e.ID = record.Principal(strings.TrimSpace(string(e.ID)))
	if e.ID.IsZero() {
		return
	}
	r.entries.Store(e.ID, e)
}

// Remove unregisters a principal. Locks it holds stay in place until they expire or are released.
func (r *Registry) Remove(id record.Principal) {
	r.entries.Delete(id)
}

// Lookup returns the registered entry for id
func (r *Registry) Lookup(id record.Principal) (Entry, bool) {
	return r.entries.Load(id)
}

// Entries returns all registered entries sorted by id
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, r.entries.Size())
	r.entries.Range(func(_ record.Principal, e Entry) bool {
		out = append(out, e)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve implements IResolver
func (r *Registry) Resolve(p record.Principal) (record.Principal, error) {
	id := record.Principal(strings.TrimSpace(string(p)))
	if id.IsZero() {
		return "", ErrEmptyPrincipal
	}
	e, ok := r.entries.Load(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrincipal, id)
	}
	return e.ID, nil
}

// --------------------------------------------------------------------------
// Registry file
// --------------------------------------------------------------------------

// registryFile is the YAML layout of a registry file:
//
//	principals:
//	  - id: alice
//	    name: Alice Example
type registryFile struct {
	Principals []Entry `yaml:"principals"`
}

// ParseRegistry reads a registry from YAML
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("principal: parse registry: %w", err)
	}
	seen := make(map[record.Principal]bool, len(f.Principals))
	for i, e := range f.Principals {
		id := record.Principal(strings.TrimSpace(string(e.ID)))
		if id.IsZero() {
			return nil, fmt.Errorf("principal: entry %d has an empty id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("principal: duplicate id %q", id)
		}
		seen[id] = true
	}
	return NewRegistry(f.Principals...), nil
}

// LoadRegistryFile reads a registry from a YAML file
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("principal: %w", err)
	}
	r, err := ParseRegistry(data)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d principals from %s", r.entries.Size(), path)
	return r, nil
}
