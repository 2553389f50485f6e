// Command jsonschema-gen writes the JSON schema of the items stream
// targets receive.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/core/gatekeeper"
	"github.com/safedep/gatekeeper/core/stream"
)

const schemaOutputPath = "schema/stream-item.schema.json"

type jsonSchema struct {
	Schema      string                `json:"$schema"`
	ID          string                `json:"$id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        string                `json:"type"`
	Properties  map[string]property   `json:"properties"`
	Required    []string              `json:"required"`
	Defs        map[string]definition `json:"$defs,omitempty"`
}

type property struct {
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Ref         string   `json:"$ref,omitempty"`
	Items       *items   `json:"items,omitempty"`
}

type items struct {
	Type string `json:"type,omitempty"`
	Ref  string `json:"$ref,omitempty"`
}

type definition struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Properties  map[string]property `json:"properties"`
	Required    []string            `json:"required,omitempty"`
}

func main() {
	schema := generateStreamItemSchema()

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal schema: %v\n", err)
		os.Exit(1)
	}

	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(schemaOutputPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create schema directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(schemaOutputPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Schema written to %s\n", schemaOutputPath)
}

func generateStreamItemSchema() jsonSchema {
	schema := jsonSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          stream.ItemSchemaURL,
		Title:       "Gatekeeper Stream Item",
		Description: "One line written to a stream target, wrapping an audit record of a block or report-only verdict.",
		Type:        "object",
		Properties: map[string]property{
			"audit": {Ref: "#/$defs/audit_record"},
		},
		Required: []string{"audit"},
		Defs:     make(map[string]definition),
	}

	record := structToDefinition(reflect.TypeOf(audit.Record{}), "An entry in the gatekeeper audit trail.")
	record.Properties["verdict"] = property{
		Type:        "string",
		Description: "The engine decision.",
		Enum:        []string{string(gatekeeper.VerdictBlock), string(gatekeeper.VerdictReportOnly)},
	}
	record.Properties["action"] = property{
		Type:        "string",
		Description: "What was done about the verdict.",
		Enum:        []string{string(audit.ActionNone), string(audit.ActionKick), string(audit.ActionReport)},
	}
	record.Properties["result"] = property{
		Type:        "string",
		Description: "The outcome of the action.",
		Enum:        []string{string(audit.ResultSuccess), string(audit.ResultError), string(audit.ResultSkipped)},
	}
	record.Properties["reports"] = property{
		Type:        "array",
		Description: "Diagnostics raised during evaluation.",
		Items:       &items{Ref: "#/$defs/report_entry"},
	}

	schema.Defs["audit_record"] = record
	schema.Defs["report_entry"] = structToDefinition(
		reflect.TypeOf(gatekeeper.ReportEntry{}),
		"A diagnostic raised by a check.",
	)

	return schema
}

func parseJSONTag(tag string) (string, string) {
	parts := strings.SplitN(tag, ",", 2)
	name := parts[0]
	opts := ""
	if len(parts) > 1 {
		opts = parts[1]
	}
	return name, opts
}

func fieldToProperty(field reflect.StructField) property {
	prop := property{}

	switch field.Type {
	case reflect.TypeOf(uuid.UUID{}):
		prop.Type = "string"
		prop.Format = "uuid"
	case reflect.TypeOf(time.Time{}):
		prop.Type = "string"
		prop.Format = "date-time"
	default:
		switch field.Type.Kind() {
		case reflect.String:
			prop.Type = "string"
		case reflect.Int, reflect.Int64:
			prop.Type = "integer"
		case reflect.Bool:
			prop.Type = "boolean"
		case reflect.Slice:
			prop.Type = "array"
			if field.Type.Elem().Kind() == reflect.String {
				prop.Items = &items{Type: "string"}
			}
		}
	}

	return prop
}

func structToDefinition(t reflect.Type, desc string) definition {
	def := definition{
		Type:        "object",
		Description: desc,
		Properties:  make(map[string]property),
	}

	for i := range t.NumField() {
		field := t.Field(i)
		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		def.Properties[name] = fieldToProperty(field)

		if !strings.Contains(opts, "omitempty") {
			def.Required = append(def.Required, name)
		}
	}

	return def
}
