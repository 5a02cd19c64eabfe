// Package registry maintains the searchable catalog of candidate MCP
// servers.
//
// Catalog entries are immutable descriptors produced by upstream sources
// (the Docker YAML catalog, community scrapers, the official JSON
// registry, a user-editable custom file). The catalog guarantees
// identifier uniqueness; entries are readable by many and mutated only by
// the refresher, which runs sources sequentially on a fixed schedule with
// a per-source minimum interval.
package registry
