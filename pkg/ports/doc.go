/*
Package ports defines the driven ports (interfaces) for the graft coordinator.

These interfaces decouple the reload protocol from external implementations,
allowing the coordinator to work with various symbol resolvers and registry
sweep backends.

# Key Interfaces

  - SymbolResolver: Resolves dotted module paths and evicts them by namespace.
  - Module: A resolved module serving attribute lookups.
  - SweepStrategy: Best-effort purge of an external global registry before a reload.
*/
package ports
