package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/ignite/audience-pilot/internal/pkg/logger"
)

const trackingTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("migrate: DATABASE_URL is required")
		os.Exit(1)
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migrate: open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("migrate: ping database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec(trackingTable); err != nil {
		logger.Error("migrate: ensure schema_migrations", "error", err)
		os.Exit(1)
	}

	if listOnly {
		list(db)
		return
	}

	applied, err := appliedVersions(db)
	if err != nil {
		logger.Error("migrate: read applied versions", "error", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("migrate: read migrations dir", "dir", dir, "error", err)
		os.Exit(1)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var ran, skipped int
	for _, f := range files {
		if applied[f] {
			skipped++
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			logger.Error("migrate: read file", "file", f, "error", err)
			os.Exit(1)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			logger.Error("migrate: begin", "file", f, "error", err)
			os.Exit(1)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			logger.Error("migrate: apply failed", "file", f, "error", err)
			os.Exit(1)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", f); err != nil {
			tx.Rollback()
			logger.Error("migrate: record version", "file", f, "error", err)
			os.Exit(1)
		}
		if err := tx.Commit(); err != nil {
			logger.Error("migrate: commit", "file", f, "error", err)
			os.Exit(1)
		}
		logger.Info("migrate: applied", "file", f)
		ran++
	}
	logger.Info("migrate: done", "applied", ran, "skipped", skipped)
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func list(db *sql.DB) {
	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		logger.Error("migrate: list versions", "error", err)
		os.Exit(1)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var v, at string
		if err := rows.Scan(&v, &at); err != nil {
			logger.Error("migrate: scan version", "error", err)
			os.Exit(1)
		}
		fmt.Printf("  %s  applied %s\n", v, at)
		n++
	}
	fmt.Printf("Total: %d applied migrations\n", n)
}
