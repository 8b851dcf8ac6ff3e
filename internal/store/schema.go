package store

import (
	"embed"
	"sort"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SchemaFiles returns the embedded schema migration filenames in lexical
// order, the order create_instance applies them in against a freshly
// allocated substrate.
func SchemaFiles() ([]string, error) {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadSchemaFile returns the contents of one embedded schema file by name
// (as returned from SchemaFiles).
func ReadSchemaFile(name string) ([]byte, error) {
	return schemaFS.ReadFile("schema/" + name)
}
