package sa

import "database/sql"

// These interfaces split gorp.SqlExecutor into narrow capabilities so the
// select/insert/update helpers below can run against either a *gorp.DbMap
// or an open *gorp.Transaction, and so tests can substitute fakes.
//
// By convention, any function taking a OneSelector, Selector, Inserter,
// Execer, or SelectExecer expects a context to already have been applied to
// the relevant DbMap or Transaction.

// OneSelector is anything that provides a SelectOne function.
type OneSelector interface {
	SelectOne(interface{}, string, ...interface{}) error
}

// Selector is anything that provides a Select function.
type Selector interface {
	Select(interface{}, string, ...interface{}) ([]interface{}, error)
}

// Inserter is anything that provides an Insert function.
type Inserter interface {
	Insert(list ...interface{}) error
}

// Execer is anything that provides an Exec function.
type Execer interface {
	Exec(string, ...interface{}) (sql.Result, error)
}

// SelectExecer offers a subset of gorp.SqlExecutor's methods.
type SelectExecer interface {
	Selector
	Execer
}

// Updater is anything that provides Update and Delete functions.
type Updater interface {
	Update(...interface{}) (int64, error)
	Delete(...interface{}) (int64, error)
}

// SqlExecutor is the full combination this package's queries are written
// against; *gorp.DbMap and *gorp.Transaction both satisfy it.
type SqlExecutor interface {
	OneSelector
	Inserter
	SelectExecer
	Updater
}
