package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jessevdk/go-flags"
	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.
)

// config holds the paths the tool reads from and writes to, relative to the
// repository root.
type config struct {
	MigrationDir string `long:"migrations" description:"Directory holding the up and down migrations"`
	OutFile      string `long:"out" description:"Path of the consolidated schema file"`
}

func main() {
	cfg := config{
		MigrationDir: "invdb/sqlc/migrations",
		OutFile:      "invdb/sqlc/schemas/generated_schema.sql",
	}
	if _, err := flags.Parse(&cfg); err != nil {
		os.Exit(1)
	}

	schema, err := mergeSchemas(cfg.MigrationDir)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutFile), 0755); err != nil {
		log.Fatalf("failed to create schema output dir: %v", err)
	}
	if err := os.WriteFile(cfg.OutFile, []byte(schema), 0644); err != nil {
		log.Fatalf("failed to write schema file: %v", err)
	}

	log.Printf("Consolidated schema written to %s", cfg.OutFile)
}

// mergeSchemas applies all up migrations of dir to an in-memory database and
// returns the resulting table, view and index definitions ordered by name.
func mergeSchemas(dir string) (string, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return "", fmt.Errorf("failed to open in-memory db: %w", err)
	}
	defer db.Close()

	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migration dir: %w", err)
	}

	var upFiles []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".up.sql") {
			upFiles = append(upFiles, f.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}

		if _, err := db.Exec(string(data)); err != nil {
			return "", fmt.Errorf("error executing migration %s: %w",
				name, err)
		}
	}

	// Objects sqlite creates internally have no sql definition.
	rows, err := db.Query(`
		SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'view', 'index') AND sql IS NOT NULL
		ORDER BY name`,
	)
	if err != nil {
		return "", fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	var schema strings.Builder
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return "", fmt.Errorf("error scanning row: %w", err)
		}

		schema.WriteString(def)
		schema.WriteString(";\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating rows: %w", err)
	}

	return schema.String(), nil
}
