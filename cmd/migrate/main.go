// Command migrate runs schema operations for the backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"socialconnect/internal/config"
	"socialconnect/internal/database"

	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("schema migrated")
	case "status":
		return status(db)
	default:
		return usage()
	}
	return nil
}

func status(db *gorm.DB) error {
	migrator := db.Migrator()
	pending := 0
	for _, model := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
		if !migrator.HasTable(model) {
			log.Printf("missing table: %s", stmt.Schema.Table)
			pending++
			continue
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName != "" && !migrator.HasColumn(model, field.DBName) {
				log.Printf("missing column: %s.%s", stmt.Schema.Table, field.DBName)
				pending++
			}
		}
	}
	log.Printf("models=%d pending=%d", len(database.PersistentModels()), pending)
	return nil
}
