// Package migrations embeds the schema for the trade stores and applies it.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds the PostgreSQL schema files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse schema files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// sqlFiles returns the non-empty .sql files under dir in lexical order,
// paired with their contents.
func sqlFiles(fsys fs.FS, dir string) ([]string, map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	contents := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		names = append(names, entry.Name())
		contents[entry.Name()] = string(data)
	}
	sort.Strings(names)
	return names, contents, nil
}
