package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"

	"github.com/pressly/goose/v3"
)

// Migrations are compiled into every binary so the dev auto-run does not
// depend on the working directory of the process.
//
//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// RunEmbedded executes a goose command against the compiled-in migrations.
func RunEmbedded(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)
	return Run(ctx, db, embeddedDir, command, args...)
}

// EmbeddedVersions lists the versions compiled into the binary, oldest first.
func EmbeddedVersions() ([]int64, error) {
	entries, err := fs.ReadDir(embedded, embeddedDir)
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}
	versions := make([]int64, 0, len(entries))
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version %q: %w", e.Name(), err)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
