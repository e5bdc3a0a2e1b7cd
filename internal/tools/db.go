package tools

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migration/*
var migrationFiles embed.FS

// Open the results db, retrying a few times, and bring the schema up to date
func ConnectSqlite(filePath string, maxRetries int) (*sql.DB, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	db, err := connectWithBackoff("sqlite3", filePath, maxRetries)
	if err != nil {
		return nil, err
	}

	err = RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrations run in file name order, each must be idempotent
func RunMigrations(db *sql.DB) error {
	dirEntries, err := fs.ReadDir(migrationFiles, "migration")
	if err != nil {
		return err
	}
	sort.Slice(dirEntries, func(i, j int) bool {
		return dirEntries[i].Name() < dirEntries[j].Name()
	})
	for _, entry := range dirEntries {
		fileName := path.Join("migration", entry.Name())
		fileData, err := fs.ReadFile(migrationFiles, fileName)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(fileData)); err != nil {
			return fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func connectWithBackoff(driver string, connStr string, maxRetries int) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i) * (3 * time.Second))
		}
		db, err = sql.Open(driver, connStr)
		if err != nil {
			log.Println("Failed attempt to connect to " + driver + ": " + err.Error())
			continue
		}
		err = db.Ping()
		if err != nil {
			log.Println("Failed attempt to connect to " + driver + ": " + err.Error())
			db.Close()
			continue
		}
		return db, nil
	}
	return nil, err
}
