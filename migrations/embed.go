// Package migrations embeds the SQL schema of the service.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// FS holds the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS

// Names lists the embedded migration files in apply order.
func Names() ([]string, error) {
	names, err := fs.Glob(FS, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
