package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/rajivgeraev/reloop-api/internal/db"
)

func main() {
	var dbURL, migrationsPath string
	var down bool

	flag.StringVar(&dbURL, "db-url", "", "db url connection (по умолчанию DATABASE_URL)")
	flag.StringVar(&migrationsPath, "migrations-path", "", "path to migrations (по умолчанию встроенные)")
	flag.BoolVar(&down, "down", false, "откатить все миграции")
	flag.Parse()

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		panic("db url is required")
	}

	source := ""
	if migrationsPath != "" {
		source = "file://" + migrationsPath
	}

	m, err := db.NewMigrator(dbURL, source)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}
		panic(err)
	}

	fmt.Println("migrations applied successfully")
}
