package ports

import "context"

// Module is a resolved module: a named bag of attributes.
type Module interface {
	// Path returns the dotted module path this module was resolved from.
	Path() string

	// Attribute fetches a named value off the module.
	// A missing name returns *domain.AttributeNotFoundError.
	Attribute(name string) (any, error)
}

// SymbolResolver defines how the coordinator turns dotted module paths into
// live modules. Implementations are expected to cache resolved modules so
// that repeat resolutions of the same path are cheap, and to honor
// Invalidate so a reload can force fresh resolution.
type SymbolResolver interface {
	// Resolve produces the module for a dotted path, from cache or fresh.
	// A path that cannot be resolved returns *domain.ImportError wrapping
	// the underlying cause.
	Resolve(ctx context.Context, path string) (Module, error)

	// Invalidate evicts every cached module whose path equals prefix or is
	// nested under it at a dot boundary ("pkg" evicts "pkg" and "pkg.app",
	// never "pkgfoo"). It returns the number of modules evicted.
	Invalidate(prefix string) int
}

// NamespaceMatches reports whether a dotted module path equals prefix or is
// nested under it at a dot boundary. This is the matching rule every
// SymbolResolver must apply in Invalidate.
func NamespaceMatches(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '.'
}
