package domain

// Handle is an opaque reference to the loaded application object.
// The coordinator owns the cached handle exclusively between reloads;
// ownership of the old handle is dropped the instant a reload completes.
// Callers decide what it really is through an accept predicate
// (e.g. "implements http.Handler").
type Handle = any
