package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charlesng35/snippets/internal/models"
)

// Permission describes an operation gated by a minimum access level.
type Permission struct {
	ID          string
	Module      string
	DependsOn   []string
	Threshold   models.AccessLevel
	Description string
}

var (
	errNilPermission  = errors.New("permission: nil definition")
	errEmptyID        = errors.New("permission: id is required")
	errDuplicateID    = errors.New("permission: already registered")
	errSelfDependency = errors.New("permission: cannot depend on itself")
	errBadThreshold   = errors.New("permission: threshold must not be negative")
)

// Registry holds permission definitions. Lookups hand out copies.
type Registry struct {
	mu    sync.RWMutex
	perms map[string]*Permission
}

func NewRegistry() *Registry {
	return &Registry{perms: make(map[string]*Permission)}
}

// defaultRegistry receives the definitions from core.go.
var defaultRegistry = NewRegistry()

// Register validates perm and stores a normalised copy.
func (r *Registry) Register(perm *Permission) error {
	def, err := normalise(perm)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.perms[def.ID]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, def.ID)
	}
	r.perms[def.ID] = def
	return nil
}

func (r *Registry) Get(id string) (*Permission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perm, ok := r.perms[strings.TrimSpace(id)]
	if !ok {
		return nil, false
	}
	return perm.clone(), true
}

// Snapshot copies every definition keyed by ID.
func (r *Registry) Snapshot() map[string]*Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Permission, len(r.perms))
	for id, perm := range r.perms {
		out[id] = perm.clone()
	}
	return out
}

// Sorted returns the definitions accepted by keep, ordered by module then ID.
// A nil keep returns everything.
func (r *Registry) Sorted(keep func(*Permission) bool) []*Permission {
	var perms []*Permission
	for _, perm := range r.Snapshot() {
		if keep == nil || keep(perm) {
			perms = append(perms, perm)
		}
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Module != perms[j].Module {
			return perms[i].Module < perms[j].Module
		}
		return perms[i].ID < perms[j].ID
	})
	return perms
}

// Validate reports the first dangling or circular dependency.
func (r *Registry) Validate() error {
	snapshot := r.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := resolveIn(snapshot, id); err != nil {
			return fmt.Errorf("permission %s: %w", id, err)
		}
	}
	return nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.perms, id)
}

func Register(perm *Permission) error { return defaultRegistry.Register(perm) }

func Get(id string) (*Permission, bool) { return defaultRegistry.Get(id) }

func GetAll() map[string]*Permission { return defaultRegistry.Snapshot() }

func List() []*Permission { return defaultRegistry.Sorted(nil) }

func GetByModule(module string) []*Permission {
	module = strings.TrimSpace(module)
	return defaultRegistry.Sorted(func(p *Permission) bool { return p.Module == module })
}

func ValidateDependencies() error { return defaultRegistry.Validate() }

func removePermission(id string) { defaultRegistry.remove(id) }

func normalise(perm *Permission) (*Permission, error) {
	if perm == nil {
		return nil, errNilPermission
	}

	def := perm.clone()
	def.ID = strings.TrimSpace(def.ID)
	def.Module = strings.TrimSpace(def.Module)
	switch {
	case def.ID == "":
		return nil, errEmptyID
	case def.Threshold < 0:
		return nil, fmt.Errorf("%w: %s", errBadThreshold, def.ID)
	}

	var deps []string
	seen := make(map[string]bool, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		dep = strings.TrimSpace(dep)
		if dep == def.ID {
			return nil, errSelfDependency
		}
		if dep == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	def.DependsOn = deps
	return def, nil
}

func (p *Permission) clone() *Permission {
	cp := *p
	if len(p.DependsOn) > 0 {
		cp.DependsOn = append([]string(nil), p.DependsOn...)
	}
	return &cp
}
