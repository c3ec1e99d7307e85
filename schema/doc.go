// Package schema derives JSON Schema definitions from Go types and
// validates raw JSON payloads against them.
//
// Tool input schemas are generated by reflecting over a handler's
// input struct:
//
//	type searchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	    Limit int    `json:"limit" jsonschema:"minimum=1,maximum=100"`
//	}
//
//	s, err := schema.Generate(searchInput{})
//
// Structs map to objects, slices to arrays, maps to objects, and
// pointers are dereferenced. The json tag controls the property name
// and `json:"-"` excludes a field.
//
// The jsonschema tag carries validation constraints:
//
//	Required string `jsonschema:"required"`
//	Desc     string `jsonschema:"description=What to search for"`
//	Count    int    `jsonschema:"minimum=1,maximum=100"`
//	Mode     string `jsonschema:"enum=fast|safe,default=safe"`
//
// Schema.Validate checks a json.RawMessage against the schema and
// returns ValidationErrors with a dotted path per violation, so a bad
// tools/call payload can be rejected before the handler runs.
package schema
