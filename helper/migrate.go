package helper

//nolint:revive
import (
	"errors"
	"fmt"
	"net"
	"roombook/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

const migrationsSource = "file://migrations/postgres"

const (
	ActionUp      = "up"
	ActionDown    = "down"
	ActionStepUp  = "step-up"
	ActionDrop    = "drop"
	ActionVersion = "version"
)

var ErrUnknownAction = errors.New("unknown migration action")

// Actions lists what Runner accepts, in the order the CLI prints them.
var Actions = []string{ActionUp, ActionDown, ActionStepUp, ActionDrop, ActionVersion}

func getDBName(config *config.Config, baseName string) string {
	if config.DB.Postgres.Prefix != "" {
		return config.DB.Postgres.Prefix + baseName
	}

	return baseName
}

func getConnection(config *config.Config) (*migrate.Migrate, error) {
	connectionString := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s&x-migrations-table=%s",
		config.DB.Postgres.Write.Username,
		config.DB.Postgres.Write.Password,
		net.JoinHostPort(config.DB.Postgres.Write.Host, config.DB.Postgres.Write.Port),
		getDBName(config, config.DB.Postgres.Write.Name),
		config.DB.Postgres.Write.SSLMode,
		config.DB.Postgres.MigrationTable,
	)

	mig, err := migrate.New(migrationsSource, connectionString)
	if err != nil {
		return nil, fmt.Errorf("error creating migrate instance: %w", err)
	}

	return mig, nil
}

func isAction(action string) bool {
	for _, known := range Actions {
		if known == action {
			return true
		}
	}

	return false
}

// Runner applies action to the bookings schema. The exclusion constraint on
// bookings lives in these migrations, so a dirty schema is logged loudly.
func Runner(config *config.Config, action string) error {
	if !isAction(action) {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	mig, err := getConnection(config)
	if err != nil {
		return err
	}

	defer mig.Close()

	var runErr error

	switch action {
	case ActionUp:
		runErr = mig.Up()
	case ActionDown:
		runErr = mig.Steps(-1)
	case ActionStepUp:
		runErr = mig.Steps(1)
	case ActionDrop:
		runErr = mig.Down()
	}

	if runErr != nil && !errors.Is(runErr, migrate.ErrNoChange) {
		return fmt.Errorf("error running %s migration: %w", action, runErr)
	}

	return logVersion(mig, action)
}

func logVersion(mig *migrate.Migrate, action string) error {
	version, dirty, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Str("action", action).Msg("Database has no migrations applied")

		return nil
	}

	if err != nil {
		return fmt.Errorf("error reading migration version: %w", err)
	}

	event := log.Info()
	if dirty {
		event = log.Warn()
	}

	event.Str("action", action).Uint("version", version).Bool("dirty", dirty).Msg("Database migration state")

	return nil
}

func Up(config *config.Config) error {
	return Runner(config, ActionUp)
}
