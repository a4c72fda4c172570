/*
Package graft is a reload coordinator for long-lived application handles
loaded from dynamically named symbols, built for dev-mode serving loops.

It manages one cached handle per Reloader: the handle is loaded from a
"module.path:attribute" target, served cheaply on every lookup, and rebuilt
on demand when a watcher (or any caller) requests a reload. The hard part it
owns is the invalidation protocol: before re-resolving, external global
registries are swept and every module under the target's namespace is
evicted from the resolver, so the fresh handle never sees stale definitions.

# Concept

Callers ask for the handle by target string on every request; graft answers
from cache in O(1) until something forces a reload. A monotonic generation
counter increments once per reload, so collaborators detect "something
changed" by comparing integers instead of handles. Symbol resolution and
registry sweeping are ports: the built-in resolver interprets Go source
on the fly, and sweep strategies exist for Prometheus collector registries
and Redis dev caches, but any implementation can be injected.

# Key Features

  - Cache-first lookups: steady-state loads are read-locked map-free hits.
  - Atomic reloads: sweep, invalidate, and re-resolve under one lock.
  - Generation counter: cheap change detection for servers and tooling.
  - Pluggable ports: resolver and sweep strategies are injected capabilities.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/graft"
	)

	func main() {
		// Resolves "app" from Go source under ./myproject
		rl, err := graft.New("./myproject")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()

		// First call resolves and caches; generation is 0.
		handle, gen, err := rl.Load(ctx, "app:Service", false)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("loaded %T at generation %d", handle, gen)

		// Subsequent calls are cache hits: same handle, same generation.
		handle, gen, _ = rl.Load(ctx, "app:Service", false)

		// A forced reload sweeps registries, re-reads source, and bumps
		// the generation.
		handle, gen, err = rl.Load(ctx, "app:Service", true)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("reloaded %T at generation %d", handle, gen)
	}
*/
package graft
