// Package promptbuilder assembles the two deterministic prompt shapes the
// orchestrator sends to the LLM: the initial generation prompt and the
// recovery prompt (spec.md §4.5). Identical inputs always produce
// byte-identical prompts — stable key ordering, stable truncation.
package promptbuilder

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sqlgateway/internal/resourcecache"
	"sqlgateway/internal/sqlerrors"
	"sqlgateway/pkg/logging"
)

// DefaultMaxItems bounds how many entries of any one rendered collection
// are shown before truncation (spec.md §8 B2).
const DefaultMaxItems = 20

const subsystem = "PromptBuilder"

const responseSchema = `{
  "sql_query": "string, required",
  "resolved_entities": [
    {"original_term": "string", "resolved_value": "string", "source_server": "string", "confidence": "number 0-1"}
  ],
  "explanation": "string, required"
}`

const recoveryResponseSchema = `{
  "sql_query": "string, required",
  "resolved_entities": [
    {"original_term": "string", "resolved_value": "string", "source_server": "string", "confidence": "number 0-1"}
  ],
  "explanation": "string, required",
  "changes_made": ["string"]
}`

// BuildInitialPrompt assembles the initial generation prompt: a header, the
// raw user query, a catalog rendering, numbered instructions, and the JSON
// response schema (spec.md §4.5).
func BuildInitialPrompt(userQuery string, catalog resourcecache.AggregatedCatalog, maxItems int) string {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var b strings.Builder
	b.WriteString("You are translating a natural-language question into a single read-only SQL query.\n\n")
	b.WriteString("User question:\n")
	b.WriteString(userQuery)
	b.WriteString("\n\n")
	b.WriteString(renderCatalog(catalog, maxItems, false))
	b.WriteString("\nInstructions:\n")
	b.WriteString("1. Resolve user-friendly terms (product names, aliases, date phrases) to the concrete values shown in the catalog above.\n")
	b.WriteString("2. Map user-friendly terms to the declared column names; never invent column or table names absent from the catalog.\n")
	b.WriteString("3. Use SELECT exclusively; never produce INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE, GRANT, REVOKE or MERGE.\n")
	b.WriteString("4. Always provide a brief explanation of what the query computes and any terms you resolved.\n\n")
	b.WriteString("Respond with a single JSON object matching this schema:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n")
	return b.String()
}

// RecoveryInput carries everything the recovery prompt needs beyond the
// catalog.
type RecoveryInput struct {
	UserQuery     string
	FailedSQL     string
	EngineMessage string
	Category      sqlerrors.Category
	AttemptNo     int
}

// BuildRecoveryPrompt assembles a recovery prompt: original query, prior
// failed SQL, engine message, category, a schema-prioritized catalog
// rendering, category-specific fix instructions, the response schema with
// changes_made, and — for attempt_no > 1 — an explicit careful-correction
// notice (spec.md §4.5).
func BuildRecoveryPrompt(input RecoveryInput, catalog resourcecache.AggregatedCatalog, maxItems int) string {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	var b strings.Builder
	b.WriteString("The following SQL query failed and must be corrected.\n\n")
	b.WriteString("Original user question:\n")
	b.WriteString(input.UserQuery)
	b.WriteString("\n\n")
	b.WriteString("Failed SQL:\n")
	b.WriteString(input.FailedSQL)
	b.WriteString("\n\n")
	b.WriteString("Engine message:\n")
	b.WriteString(input.EngineMessage)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Error category: %s\n\n", input.Category)
	b.WriteString(renderCatalog(catalog, maxItems, true))
	b.WriteString("\n")
	b.WriteString(fixInstructionsFor(input.Category))
	b.WriteString("\n")
	if input.AttemptNo > 1 {
		b.WriteString("This is a repeated failure; be especially careful to reference only tables and columns shown above, and double-check syntax before responding.\n\n")
	}
	b.WriteString("Respond with a single JSON object matching this schema:\n")
	b.WriteString(recoveryResponseSchema)
	b.WriteString("\n")
	return b.String()
}

var fixInstructions = map[sqlerrors.Category]string{
	sqlerrors.SyntaxError:      "Fix instructions: re-check SQL syntax, keyword spelling, and statement structure; ensure every clause (SELECT, FROM, WHERE, GROUP BY) is present and correctly ordered.",
	sqlerrors.MissingColumn:    "Fix instructions: use only column names listed in the schema section above; if the intended column is absent, choose the closest declared column or omit the predicate.",
	sqlerrors.MissingTable:     "Fix instructions: use only table names listed in the schema section above; the previously referenced table does not exist in the aggregated schema.",
	sqlerrors.DataTypeMismatch: "Fix instructions: cast values to the column's declared type, or compare against a literal of the correct type.",
	sqlerrors.AmbiguousColumn:  "Fix instructions: qualify every ambiguous column reference with its table name or alias.",
	sqlerrors.AggregationError: "Fix instructions: every selected non-aggregated column must appear in the GROUP BY clause, or be wrapped in an aggregate function.",
	sqlerrors.UnknownError:     "Fix instructions: re-examine the query against the schema above and correct any apparent mistake.",
}

func fixInstructionsFor(category sqlerrors.Category) string {
	if msg, ok := fixInstructions[category]; ok {
		return msg
	}
	return fixInstructions[sqlerrors.UnknownError]
}

// renderCatalog renders the AggregatedCatalog deterministically. When
// schemaFirst is true, table/column sections precede the per-server
// resource blocks (spec.md §4.5 recovery prompt requirement).
func renderCatalog(catalog resourcecache.AggregatedCatalog, maxItems int, schemaFirst bool) string {
	var b strings.Builder
	b.WriteString("Available resources:\n")

	renderSchema := func() {
		if len(catalog.Tables) == 0 {
			return
		}
		b.WriteString("Known tables and columns:\n")
		for _, t := range truncateTables(catalog.Tables, maxItems) {
			if t.Name == truncationMarkerTableName {
				fmt.Fprintf(&b, "  … (%d more tables)\n", t.truncatedCount)
				continue
			}
			fmt.Fprintf(&b, "  - %s (%s)\n", t.Name, strings.Join(truncateStrings(t.Columns, maxItems), ", "))
		}
		b.WriteString("\n")
	}

	if schemaFirst {
		renderSchema()
	}

	if len(catalog.ProductNames) > 0 {
		b.WriteString("Known product names:\n")
		for _, name := range truncateStrings(catalog.ProductNames, maxItems) {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
		b.WriteString("\n")
	}

	if !schemaFirst {
		renderSchema()
	}

	for _, block := range catalog.Servers {
		fmt.Fprintf(&b, "Server: %s (priority=%d, domains=%s)\n", block.ServerID, block.Priority, strings.Join(block.Domains, ","))
		uris := make([]string, 0, len(block.Entries))
		for uri := range block.Entries {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		shown, more := truncateSlice(uris, maxItems)
		for _, uri := range shown {
			entry := block.Entries[uri]
			payload, _ := json.Marshal(entry.Payload)
			fmt.Fprintf(&b, "  - %s: %s\n", uri, string(payload))
		}
		if more > 0 {
			logTruncation(fmt.Sprintf("resources on server %s", block.ServerID), more)
			fmt.Fprintf(&b, "  … (%d more items)\n", more)
		}
	}

	return b.String()
}

const truncationMarkerTableName = "\x00__truncated__"

type truncatableTable struct {
	resourcecache.TableProjection
	truncatedCount int
}

func truncateTables(tables []resourcecache.TableProjection, maxItems int) []truncatableTable {
	out := make([]truncatableTable, 0, maxItems+1)
	shown := tables
	var more int
	if len(tables) > maxItems {
		shown = tables[:maxItems]
		more = len(tables) - maxItems
	}
	for _, t := range shown {
		out = append(out, truncatableTable{TableProjection: t})
	}
	if more > 0 {
		logTruncation("tables", more)
		out = append(out, truncatableTable{TableProjection: resourcecache.TableProjection{Name: truncationMarkerTableName}, truncatedCount: more})
	}
	return out
}

// truncateStrings returns at most maxItems entries, appending a "…" marker
// with a remaining-count note when truncated (spec.md §8 B2).
func truncateStrings(items []string, maxItems int) []string {
	shown, more := truncateSlice(items, maxItems)
	if more > 0 {
		logTruncation("items", more)
		shown = append(append([]string{}, shown...), fmt.Sprintf("… (%d more items)", more))
	}
	return shown
}

func truncateSlice(items []string, maxItems int) (shown []string, more int) {
	if len(items) <= maxItems {
		return items, 0
	}
	return items[:maxItems], len(items) - maxItems
}

// logTruncation records, per SPEC_FULL.md §5, that a prompt section was cut
// short; kind names which collection (items, tables, ...) so a recurring
// drop in one rendering is easy to spot in logs.
func logTruncation(kind string, dropped int) {
	logging.Warn(subsystem, "dropped %d %s while rendering prompt catalog", dropped, kind)
}
