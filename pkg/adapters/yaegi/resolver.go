// Package yaegi resolves dotted module paths by interpreting Go source
// under a root directory. It is the default resolver for dev-mode loops:
// edits to the source take effect on the next resolve after invalidation,
// with no compile step.
package yaegi

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/graft/internal/logging"
	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Resolver implements ports.SymbolResolver over interpreted Go source.
//
// A dotted path maps to a package directory first ("pkg.app" ->
// <root>/pkg/app/, every non-test .go file), falling back to a single file
// (<root>/pkg/app.go). Each resolved module gets its own interpreter
// instance, so evicting a module from the cache drops its entire import
// state; the next resolve re-reads source from disk.
//
// Interpreted code sees the standard library only. No external packages,
// no access to the host process's symbols.
type Resolver struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*module
}

// Option defines a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithLogger sets a custom structured logger for the resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a resolver rooted at the given directory.
func New(root string, opts ...Option) (*Resolver, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}

	r := &Resolver{
		root:  root,
		cache: make(map[string]*module),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.For(r.logger, logging.ComponentResolver)
	return r, nil
}

// Resolve returns the module for a dotted path, interpreting its source on
// first use and serving the cached instance afterwards.
func (r *Resolver) Resolve(ctx context.Context, path string) (ports.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache[path]; ok {
		return m, nil
	}

	m, err := r.load(ctx, path)
	if err != nil {
		r.logger.Debug("module load failed", "module", path, "error", err)
		return nil, &domain.ImportError{Module: path, Err: err}
	}
	r.cache[path] = m
	r.logger.Debug("module loaded", "module", path, "package", m.pkgName, "files", len(m.files))
	return m, nil
}

// Invalidate evicts every cached module matching prefix at a dot boundary
// and returns how many were evicted. Evicted interpreters are dropped
// wholesale; nothing survives into the next resolve.
func (r *Resolver) Invalidate(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for path := range r.cache {
		if ports.NamespaceMatches(path, prefix) {
			delete(r.cache, path)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Debug("evicted modules", "prefix", prefix, "count", evicted)
	}
	return evicted
}

// Root returns the source root directory.
func (r *Resolver) Root() string { return r.root }

func (r *Resolver) load(ctx context.Context, path string) (*module, error) {
	files, err := r.sourceFiles(path)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading stdlib symbols: %w", err)
	}

	pkgName := ""
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		name, err := packageName(file, src)
		if err != nil {
			return nil, err
		}
		if pkgName == "" {
			pkgName = name
		} else if name != pkgName {
			return nil, fmt.Errorf("%s declares package %s, expected %s", file, name, pkgName)
		}

		if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", file, err)
		}
	}

	return &module{
		path:    path,
		pkgName: pkgName,
		files:   files,
		interp:  i,
	}, nil
}

// sourceFiles maps a dotted module path onto files under root: a package
// directory when one exists, a single .go file otherwise.
func (r *Resolver) sourceFiles(path string) ([]string, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(append([]string{r.root}, segments...)...)

	if info, err := os.Stat(base); err == nil && info.IsDir() {
		entries, err := os.ReadDir(base)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
				continue
			}
			files = append(files, filepath.Join(base, name))
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no Go source files in %s", base)
		}
		sort.Strings(files)
		return files, nil
	}

	file := base + ".go"
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("no source for module: neither %s%c nor %s exists", base, filepath.Separator, file)
	}
	return []string{file}, nil
}

// splitPath validates a dotted module path and returns its segments.
// Segments must be Go-identifier-shaped, which also keeps lookups from
// escaping the source root.
func splitPath(path string) ([]string, error) {
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if !validSegment(segment) {
			return nil, fmt.Errorf("invalid module path %q", path)
		}
	}
	return segments, nil
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
		case '0' <= r && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func packageName(file string, src []byte) (string, error) {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, src, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("parsing package clause of %s: %w", file, err)
	}
	return parsed.Name.Name, nil
}

// module is a resolved source module bound to its own interpreter.
type module struct {
	path    string
	pkgName string
	files   []string

	mu     sync.Mutex
	interp *interp.Interpreter
}

func (m *module) Path() string { return m.path }

// Attribute evaluates a package-level symbol. Only exported names are
// visible; anything else reports not-found without touching the
// interpreter.
func (m *module) Attribute(name string) (any, error) {
	if !token.IsExported(name) {
		return nil, &domain.AttributeNotFoundError{Module: m.path, Attribute: name}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.interp.Eval(m.pkgName + "." + name)
	if err != nil || !v.IsValid() {
		return nil, &domain.AttributeNotFoundError{Module: m.path, Attribute: name}
	}
	return v.Interface(), nil
}
