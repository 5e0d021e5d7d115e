package resourcecache

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// decodeResourcePayload turns a resources/read result into an opaque Go
// value for entity extraction. Text contents that parse as JSON are
// decoded; anything else (plain text, binary blobs) is kept as its raw
// string form (spec.md §6.1 "JSON by default").
func decodeResourcePayload(result *mcp.ReadResourceResult) interface{} {
	if result == nil || len(result.Contents) == 0 {
		return nil
	}

	if len(result.Contents) == 1 {
		return decodeOneContent(result.Contents[0])
	}

	out := make([]interface{}, 0, len(result.Contents))
	for _, c := range result.Contents {
		out = append(out, decodeOneContent(c))
	}
	return out
}

func decodeOneContent(content interface{}) interface{} {
	switch c := content.(type) {
	case mcp.TextResourceContents:
		return decodeJSONOrString(c.Text)
	case mcp.BlobResourceContents:
		return map[string]interface{}{"blob": c.Blob, "mimeType": c.MIMEType}
	default:
		return content
	}
}

func decodeJSONOrString(text string) interface{} {
	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded
	}
	return text
}
