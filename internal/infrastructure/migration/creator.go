package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)
	nonWordPattern       = regexp.MustCompile(`[^a-z0-9]+`)
)

// MigrationFile is a created up/down pair
type MigrationFile struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

// CreateMigration writes the next sequential up/down pair into dir, e.g.
// 000004_add_invoice_notes.up.sql
func CreateMigration(dir, name string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].Version + 1
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	mf := &MigrationFile{
		Version:  next,
		Name:     slug,
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}
	if err := os.WriteFile(mf.UpPath, []byte("-- "+slug+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := os.WriteFile(mf.DownPath, []byte("-- rollback "+slug+"\n"), 0o644); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

// ListMigrations returns the up migrations in dir ordered by version
func ListMigrations(dir string) ([]MigrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []MigrationFile
	for _, entry := range entries {
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil || match[3] != "up" {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			continue
		}
		files = append(files, MigrationFile{
			Version:  uint(version),
			Name:     match[2],
			UpPath:   filepath.Join(dir, entry.Name()),
			DownPath: filepath.Join(dir, strings.TrimSuffix(entry.Name(), ".up.sql")+".down.sql"),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func sanitizeName(name string) string {
	return strings.Trim(nonWordPattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
