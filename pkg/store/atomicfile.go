package store

import (
	"encoding/json"
	"os"

	"github.com/google/renameio/v2"
)

// writeJSONAtomic serializes v and replaces path in a single rename,
// satisfying spec.md §4.2's "writes are atomic per file" contract. The
// teacher achieves the analogous guarantee with a SQL transaction+rollback
// (pkg/queue/orphan.go's markSessionTimedOut); renameio is the filesystem
// equivalent of that discipline.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
