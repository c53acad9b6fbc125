package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/Aprilius996/ofac-monitor/internal/storage"
	"github.com/Aprilius996/ofac-monitor/migrations"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up                 Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  down               Roll back one version")
	fmt.Fprintln(os.Stderr, "  status             Show migration status")
	fmt.Fprintln(os.Stderr, "  version            Show current version")
	fmt.Fprintln(os.Stderr, "  import <state.json> Merge a JSON state file into the database")
	fmt.Fprintln(os.Stderr, "  export <state.json> Write the database state as a JSON state file")
}

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/state.db"), "path to the sqlite state database")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	var err error
	switch cmd {
	case "import", "export":
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		err = transfer(context.Background(), cmd, *dbPath, args[1])
	default:
		err = runGoose(cmd, *dbPath)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runGoose(cmd, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	switch cmd {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		return goose.Version(db, ".")
	default:
		return fmt.Errorf("unknown command")
	}
}

// transfer copies state between the JSON file backend and the database.
// Import merges into existing rows; export replaces the file atomically.
func transfer(ctx context.Context, cmd, dbPath, filePath string) error {
	db, err := storage.NewSQLite(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	file := storage.NewFileStore(filePath)

	var from, to storage.Storage = file, db
	if cmd == "export" {
		from, to = db, file
	}

	st, err := from.Load(ctx)
	if err != nil {
		return err
	}
	if err := to.Save(ctx, st); err != nil {
		return err
	}
	log.Printf("%sed %d seen, %d notified, %d notified days", cmd,
		len(st.SeenIdentifiers), len(st.NotifiedIdentifiers), len(st.NotifiedDays))
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
