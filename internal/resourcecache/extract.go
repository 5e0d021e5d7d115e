package resourcecache

import (
	"sort"
	"strings"
)

// buildCatalog merges per-server snapshots into one priority-ordered
// AggregatedCatalog and computes the deterministic entity projections
// (spec.md §4.3). priorities and domains come from the registry's server
// descriptors, keyed by server id.
func buildCatalog(snapshots map[string]ResourceSnapshot, priorities map[string]int, domains map[string][]string) AggregatedCatalog {
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sortByPriorityThenID(ids, priorities)

	catalog := AggregatedCatalog{}
	for _, id := range ids {
		snap := snapshots[id]
		catalog.Servers = append(catalog.Servers, ServerBlock{
			ServerID: id,
			Priority: priorities[id],
			Domains:  domains[id],
			Entries:  snap.Entries,
		})
	}

	catalog.ProductNames = extractProductNames(catalog.Servers)
	catalog.Tables = extractTables(catalog.Servers)
	return catalog
}

// sortByPriorityThenID orders by ascending priority, breaking ties by
// lexicographic server id so that equal-priority servers always land in the
// same relative order regardless of the random map-iteration order ids was
// built from (spec.md §4.5, SPEC_FULL.md §5).
func sortByPriorityThenID(ids []string, priorities map[string]int) {
	less := func(a, b string) bool {
		if priorities[a] != priorities[b] {
			return priorities[a] < priorities[b]
		}
		return a < b
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && less(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func hasDomain(domains []string, want string) bool {
	for _, d := range domains {
		if strings.Contains(strings.ToLower(d), want) {
			return true
		}
	}
	return false
}

// extractProductNames walks every resource entry on a product/metadata
// domain server whose uri mentions "product" or "alias", collecting the
// "name" field out of any array of objects in the payload. Servers are
// visited in priority order (lowest priority number first) and the
// lowest-priority server's casing wins on a case-insensitive collision
// (spec.md §4.3).
func extractProductNames(servers []ServerBlock) []string {
	seen := make(map[string]string) // lowercase -> winning original case
	for _, block := range servers {
		if !hasDomain(block.Domains, "product") && !hasDomain(block.Domains, "metadata") {
			continue
		}
		for uri, entry := range block.Entries {
			lowerURI := strings.ToLower(uri)
			if !strings.Contains(lowerURI, "product") && !strings.Contains(lowerURI, "alias") {
				continue
			}
			for _, name := range namesFromPayload(entry.Payload) {
				key := strings.ToLower(name)
				if _, ok := seen[key]; !ok {
					seen[key] = name
				}
			}
		}
	}
	return sortedValues(seen)
}

// extractTables walks resources on a database-domain server whose uri
// mentions "schema" or "table", pulling out table names and their
// columns[].name lists.
func extractTables(servers []ServerBlock) []TableProjection {
	seen := make(map[string]*TableProjection)
	order := make([]string, 0)

	for _, block := range servers {
		if !hasDomain(block.Domains, "database") {
			continue
		}
		uris := make([]string, 0, len(block.Entries))
		for uri := range block.Entries {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		for _, uri := range uris {
			entry := block.Entries[uri]
			lowerURI := strings.ToLower(uri)
			if !strings.Contains(lowerURI, "schema") && !strings.Contains(lowerURI, "table") {
				continue
			}
			for _, obj := range objectsFromPayload(entry.Payload) {
				name, ok := obj["name"].(string)
				if !ok || name == "" {
					continue
				}
				key := strings.ToLower(name)
				proj, exists := seen[key]
				if !exists {
					proj = &TableProjection{Name: name}
					seen[key] = proj
					order = append(order, key)
				}
				if cols, ok := obj["columns"].([]interface{}); ok {
					for _, c := range cols {
						colObj, ok := c.(map[string]interface{})
						if !ok {
							continue
						}
						if colName, ok := colObj["name"].(string); ok && colName != "" {
							proj.Columns = appendUnique(proj.Columns, colName)
						}
					}
				}
			}
		}
	}

	out := make([]TableProjection, 0, len(order))
	for _, key := range order {
		out = append(out, *seen[key])
	}
	return out
}

func appendUnique(list []string, val string) []string {
	for _, v := range list {
		if strings.EqualFold(v, val) {
			return list
		}
	}
	return append(list, val)
}

// namesFromPayload walks a decoded JSON payload looking for arrays of
// objects that carry a "name" field.
func namesFromPayload(payload interface{}) []string {
	var names []string
	for _, obj := range objectsFromPayload(payload) {
		if name, ok := obj["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// objectsFromPayload flattens a decoded JSON payload into the list of
// object-shaped elements it contains, looking one level into arrays and
// one level into maps whose values are arrays (the common API-response
// shape `{ "items": [ {...}, {...} ] }`).
func objectsFromPayload(payload interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch v := payload.(type) {
	case []interface{}:
		for _, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
	case map[string]interface{}:
		if isObjectShaped(v) {
			out = append(out, v)
		}
		for _, val := range v {
			if arr, ok := val.([]interface{}); ok {
				for _, item := range arr {
					if obj, ok := item.(map[string]interface{}); ok {
						out = append(out, obj)
					}
				}
			}
		}
	}
	return out
}

func isObjectShaped(v map[string]interface{}) bool {
	_, hasName := v["name"]
	return hasName
}

func sortedValues(seen map[string]string) []string {
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}
