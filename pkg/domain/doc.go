/*
Package domain contains the core domain models for the graft coordinator.

It defines the identity of a load request, the opaque application handle,
and the error taxonomy shared by every adapter. This package is kept pure
and free of external dependencies like I/O or interpreters, following
Hexagonal Architecture principles.

# Key Entities

  - Target: Parsed "module.path:attribute" identity of a load request.
  - Handle: Opaque reference to the loaded application object.
  - Hooks: Observability callbacks fired on load and sweep activity.
*/
package domain
