// Package config reads the datastore credentials an eqbacktester run needs
// from the environment. It binds no strategy or engine behavior — every
// other setting (strategy parameters, broker choice, date range) is
// supplied in process by the host program, not the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingDSN is returned by Load when EQBT_DB_DSN and EQBT_CSV_ENDPOINT
// are both unset, whichever driver is selected.
var ErrMissingDSN = errors.New("config: EQBT_DB_DSN is required")

// Config is the environment-sourced configuration a DataSource is built
// from.
type Config struct {
	// DBDriver selects the datasource.SQLSource dialect: "postgres" or
	// "sqlite3". Defaults to "sqlite3".
	DBDriver string
	// DBDSN is the driver-specific connection string.
	DBDSN string
	// CSVEndpoint, if set, points at a CSV-backed data source instead of a
	// SQL one. Mutually exclusive with DBDriver/DBDSN in practice, left to
	// the host program to interpret.
	CSVEndpoint string
	// DBTimeout bounds any single datastore call.
	DBTimeout time.Duration
	// DBMaxConns caps the driver's open connection pool.
	DBMaxConns int
}

const (
	envPrefix = "EQBT"

	keyDBDriver    = "db_driver"
	keyDBDSN       = "db_dsn"
	keyCSVEndpoint = "csv_endpoint"
	keyDBTimeout   = "db_timeout"
	keyDBMaxConns  = "db_max_conns"
)

// Load reads EQBT_DB_DRIVER, EQBT_DB_DSN, EQBT_CSV_ENDPOINT, EQBT_DB_TIMEOUT
// and EQBT_DB_MAX_CONNS from the environment via viper's AutomaticEnv, and
// validates that a SQL driver has a DSN to connect with.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault(keyDBDriver, "sqlite3")
	v.SetDefault(keyDBTimeout, 30*time.Second)
	v.SetDefault(keyDBMaxConns, 10)

	for _, key := range []string{keyDBDriver, keyDBDSN, keyCSVEndpoint, keyDBTimeout, keyDBMaxConns} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	cfg := Config{
		DBDriver:    v.GetString(keyDBDriver),
		DBDSN:       v.GetString(keyDBDSN),
		CSVEndpoint: v.GetString(keyCSVEndpoint),
		DBTimeout:   v.GetDuration(keyDBTimeout),
		DBMaxConns:  v.GetInt(keyDBMaxConns),
	}

	if cfg.CSVEndpoint == "" && cfg.DBDSN == "" {
		return Config{}, ErrMissingDSN
	}
	return cfg, nil
}
