// Package vectra describes search/vector indexes declaratively and builds
// type-checked filter and similarity queries against them, backed by a Redis
// engine with the FT search module.
//
// The building blocks layer bottom-up:
//   - schema: typed field descriptions and index identity
//   - filter: a composable predicate algebra rendered to engine syntax
//   - query: filter, KNN and range query value types
//   - index: the engine-facing client (create, load, fetch, query)
//
// On top of the core sit two memory abstractions: cache.SemanticCache, a
// semantic response cache keyed by prompt similarity, and the session
// managers in package session, which persist conversation exchanges.
//
//	sc, _ := schema.FromMap(map[string]any{
//	    "index":  map[string]any{"name": "docs"},
//	    "fields": map[string]any{"tag": []any{map[string]any{"name": "status"}}},
//	})
//	idx := index.New(sc)
//	_ = idx.Connect("redis://localhost:6379")
//	_ = idx.Create(ctx, false, false)
//
// This package holds only the shared error taxonomy.
package vectra
