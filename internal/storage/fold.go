package storage

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// foldFunc lower-cases text with Unicode rules. SQLite's built-in LOWER
// folds ASCII only, so "Écriture" would never match "écriture".
const foldFunc = "lower_unicode"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(foldFunc, 1, foldText); err != nil {
		panic("storage: registering " + foldFunc + ": " + err.Error())
	}
}

func foldText(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
