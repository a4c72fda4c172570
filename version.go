package graft

// Version is the graft release version. Release builds override it through
// -ldflags "-X github.com/aretw0/graft.Version=...".
var Version = "0.1.0"
