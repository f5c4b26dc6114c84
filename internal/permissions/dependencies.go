package permissions

import "errors"

var (
	// ErrUnknownPermission indicates a permission lookup failed because it has not been registered.
	ErrUnknownPermission = errors.New("permission: unknown permission")
	// ErrCircularDependency signals that a dependency graph contains a cycle.
	ErrCircularDependency = errors.New("permission: circular dependency detected")
)

// ResolveDependencies returns every permission the given one depends on,
// transitively, in the order they must be satisfied.
func ResolveDependencies(permissionID string) ([]string, error) {
	return resolveIn(defaultRegistry.Snapshot(), permissionID)
}

// resolveIn walks the dependency graph of root depth first.
func resolveIn(perms map[string]*Permission, root string) ([]string, error) {
	if _, ok := perms[root]; !ok {
		return nil, unknownPermission(root)
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(perms))
	var resolved []string

	var walk func(string) error
	walk = func(current string) error {
		switch state[current] {
		case visiting:
			return circularAt(current)
		case done:
			return nil
		}
		perm, ok := perms[current]
		if !ok {
			return unknownPermission(current)
		}

		state[current] = visiting
		for _, dep := range perm.DependsOn {
			if err := walk(dep); err != nil {
				return err
			}
		}
		state[current] = done

		if current != root {
			resolved = append(resolved, current)
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return resolved, nil
}

func unknownPermission(id string) error {
	return &permissionError{err: ErrUnknownPermission, id: id}
}

func circularAt(id string) error {
	return &permissionError{err: ErrCircularDependency, id: id}
}

type permissionError struct {
	err error
	id  string
}

func (e *permissionError) Error() string { return e.err.Error() + " " + `"` + e.id + `"` }

func (e *permissionError) Unwrap() error { return e.err }
