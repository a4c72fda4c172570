package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSymbolResolverContract is a reusable test suite that verifies an adapter
// complies with ports.SymbolResolver.
//
// newResolver must return a fresh resolver pre-seeded with this fixture:
//
//   - module "pkg" exposing attribute "Name"
//   - module "pkg.app" exposing attribute "Service"
//   - module "pkgfoo" exposing attribute "Name"
//   - no module "missing.module"
//   - "pkg.app" has no attribute "Absent"
func RunSymbolResolverContract(t *testing.T, newResolver func(t *testing.T) ports.SymbolResolver) {
	t.Helper()
	ctx := context.Background()

	t.Run("Resolve_Success", func(t *testing.T) {
		resolver := newResolver(t)
		module, err := resolver.Resolve(ctx, "pkg.app")
		require.NoError(t, err)
		assert.Equal(t, "pkg.app", module.Path())
	})

	t.Run("Resolve_Unknown", func(t *testing.T) {
		resolver := newResolver(t)
		_, err := resolver.Resolve(ctx, "missing.module")
		require.Error(t, err)

		var imp *domain.ImportError
		require.True(t, errors.As(err, &imp), "error should be *domain.ImportError, got %T", err)
		assert.Equal(t, "missing.module", imp.Module)
		assert.Error(t, imp.Err, "ImportError should carry a cause")
	})

	t.Run("Attribute_Success", func(t *testing.T) {
		resolver := newResolver(t)
		module, err := resolver.Resolve(ctx, "pkg.app")
		require.NoError(t, err)

		value, err := module.Attribute("Service")
		require.NoError(t, err)
		assert.NotNil(t, value)
	})

	t.Run("Attribute_Missing", func(t *testing.T) {
		resolver := newResolver(t)
		module, err := resolver.Resolve(ctx, "pkg.app")
		require.NoError(t, err)

		_, err = module.Attribute("Absent")
		require.Error(t, err)

		var notFound *domain.AttributeNotFoundError
		require.True(t, errors.As(err, &notFound), "error should be *domain.AttributeNotFoundError, got %T", err)
		assert.Equal(t, "pkg.app", notFound.Module)
		assert.Equal(t, "Absent", notFound.Attribute)
	})

	t.Run("Invalidate_DotBoundary", func(t *testing.T) {
		resolver := newResolver(t)

		// Populate the cache with the namespace and a lookalike neighbor.
		for _, path := range []string{"pkg", "pkg.app", "pkgfoo"} {
			_, err := resolver.Resolve(ctx, path)
			require.NoError(t, err, "resolving %s", path)
		}

		// "pkg" covers itself and "pkg.app"; "pkgfoo" must survive.
		evicted := resolver.Invalidate("pkg")
		assert.Equal(t, 2, evicted)

		// Survivor is still cached: evicting it reports exactly one entry.
		assert.Equal(t, 1, resolver.Invalidate("pkgfoo"))
	})

	t.Run("Invalidate_EmptyCache", func(t *testing.T) {
		resolver := newResolver(t)
		assert.Equal(t, 0, resolver.Invalidate("pkg"))
	})

	t.Run("Resolve_After_Invalidate", func(t *testing.T) {
		resolver := newResolver(t)
		_, err := resolver.Resolve(ctx, "pkg.app")
		require.NoError(t, err)

		resolver.Invalidate("pkg")

		// The path resolves fresh and lands back in the cache.
		module, err := resolver.Resolve(ctx, "pkg.app")
		require.NoError(t, err)
		require.Equal(t, "pkg.app", module.Path())
		assert.Equal(t, 1, resolver.Invalidate("pkg.app"))
	})
}
