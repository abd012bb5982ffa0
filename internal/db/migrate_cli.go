package db

import (
	"fmt"
	"io"
)

// MigrateActions lists the actions RunMigrateCommand accepts.
const MigrateActions = "up|down|version"

// RunMigrateCommand opens the database at dbPath without migrating it and
// applies action against the embedded migrations, reporting to out.
func RunMigrateCommand(action, dbPath string, out io.Writer) error {
	migFS, err := MigrationsFS()
	if err != nil {
		return err
	}
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migFS); err != nil {
			return err
		}
	case "down":
		if err := database.MigrateDown(migFS); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q, want %s", action, MigrateActions)
	}

	version, dirty, err := database.MigrateVersion(migFS)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(out, "schema version %d (dirty)\n", version)
	} else {
		fmt.Fprintf(out, "schema version %d\n", version)
	}
	return nil
}
