package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	sqlite "modernc.org/sqlite" // pure-Go SQLite driver, registered as "sqlite"

	"memchat/internal/vector"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerVectorFunctions makes vec_l2sq and vec_cosine_distance available on
// connections opened after the call. The driver rejects duplicate names, so
// registration happens once per process and its outcome is remembered.
func registerVectorFunctions() error {
	registerOnce.Do(func() {
		for name, fn := range map[string]func(a, b []float32) (float64, error){
			"vec_l2sq":            vector.SquaredL2Distance,
			"vec_cosine_distance": vector.CosineDistance,
		} {
			if err := sqlite.RegisterDeterministicScalarFunction(name, 2, vecDistanceImpl(fn)); err != nil {
				registerErr = fmt.Errorf("register %s: %w", name, err)
				return
			}
		}
	})
	return registerErr
}

func vecDistanceImpl(fn func(a, b []float32) (float64, error)) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("vec: expected 2 arguments, got %d", len(args))
		}
		a, err := asEmbedding(args[0], -1)
		if err != nil || a == nil {
			return nil, err
		}
		b, err := asEmbedding(args[1], len(a))
		if err != nil || b == nil {
			return nil, err
		}
		return fn(a, b)
	}
}

// asEmbedding decodes a BLOB argument of dim elements; dim < 0 accepts any.
func asEmbedding(arg driver.Value, dim int) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return vector.DecodeDim(v, dim)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

// openDB opens the SQLite database at path (":memory:" for a private
// in-memory database) with a single pooled connection. One connection gives
// the single-writer discipline the store relies on and keeps per-connection
// pragmas and in-memory databases alive for the life of the store.
func openDB(path string) (*sql.DB, error) {
	if err := registerVectorFunctions(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}
