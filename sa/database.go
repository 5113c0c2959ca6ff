package sa

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/go-gorp/gorp.v2"
)

var dialectMap = map[string]gorp.Dialect{
	"sqlite3": gorp.SqliteDialect{},
	"mysql":   gorp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8"},
}

// NewDbMap opens driver/dsn and constructs the root gorp mapping object,
// registering the event store's three tables. Create one of these per
// process; the SQL driver pools connections internally so the store itself
// never needs its own connection pool.
func NewDbMap(driver, dsn string) (*gorp.DbMap, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	dialect, ok := dialectMap[driver]
	if !ok {
		return nil, fmt.Errorf("no gorp dialect registered for driver %q", driver)
	}

	dbMap := &gorp.DbMap{Db: db, Dialect: dialect}
	initTables(dbMap)
	return dbMap, nil
}

func initTables(dbMap *gorp.DbMap) {
	dbMap.AddTableWithName(eventModel{}, "events").SetKeys(false, "ID")
	dbMap.AddTableWithName(credentialModel{}, "credentials").SetKeys(false, "Address")
	dbMap.AddTableWithName(schemaCacheModel{}, "schema_cache").SetKeys(false, "Address")
}

// CreateTablesIfNotExists creates the mapped tables; intended for the
// sqlite3 test store and for first-run bootstrap, not for production
// migrations.
func CreateTablesIfNotExists(dbMap *gorp.DbMap) error {
	return dbMap.CreateTablesIfNotExists()
}
