// Package resourcecache aggregates resources from every ready subordinate
// server into one catalog, with TTL-bounded caching and at-most-once
// concurrent refresh per server (spec.md §4.3).
package resourcecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// ResourceEntry is one resource read from a server. Identity is
// (ServerID, URI).
type ResourceEntry struct {
	ServerID    string
	URI         string
	Name        string
	MimeType    string
	Description string
	Payload     interface{}
}

// ResourceSnapshot is an immutable per-server map of resources plus fetch
// metadata. A new snapshot is swapped in atomically; existing snapshots are
// never mutated in place.
type ResourceSnapshot struct {
	ServerID      string
	Entries       map[string]ResourceEntry // uri -> entry
	FetchedAt     time.Time
	FetchDuration time.Duration
	MetadataHash  string
}

// isValid reports whether the snapshot is still within ttl (spec.md §3.2).
func (s ResourceSnapshot) isValid(ttl time.Duration) bool {
	if s.Entries == nil {
		return false
	}
	return time.Since(s.FetchedAt) < ttl
}

// computeMetadataHash produces a deterministic digest of a snapshot's
// payloads so that downstream caches can detect unchanged content
// (spec.md §3.2, P6).
func computeMetadataHash(entries map[string]ResourceEntry) string {
	uris := make([]string, 0, len(entries))
	for uri := range entries {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	h := sha256.New()
	for _, uri := range uris {
		entry := entries[uri]
		payload, _ := json.Marshal(entry.Payload)
		h.Write([]byte(uri))
		h.Write([]byte{0})
		h.Write(payload)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ServerBlock is one server's contribution to an AggregatedCatalog,
// ordered by priority (spec.md §4.5 prompt rendering reads this directly).
type ServerBlock struct {
	ServerID string
	Priority int
	Domains  []string
	Entries  map[string]ResourceEntry
}

// AggregatedCatalog is the derived, priority-ordered view the pipeline
// reads from (spec.md §3.1).
type AggregatedCatalog struct {
	Servers []ServerBlock

	// ProductNames and Tables are the deterministic projections described
	// in spec.md §4.3, computed once per Catalog() call.
	ProductNames []string
	Tables       []TableProjection
}

// TableProjection is one table's name and column names extracted from a
// database-domain server's schema resources.
type TableProjection struct {
	Name    string
	Columns []string
}

// IsEmpty reports whether the catalog carries no server data at all.
func (c AggregatedCatalog) IsEmpty() bool {
	return len(c.Servers) == 0
}
