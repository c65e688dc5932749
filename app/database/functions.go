package database

import (
	"database/sql/driver"

	"golang.org/x/text/cases"
	"modernc.org/sqlite"
)

// FoldFunction is the SQL name of the Unicode case-folding function available
// on every connection. SQLite's own LOWER only folds ASCII.
const FoldFunction = "unicode_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(FoldFunction, 1, foldValue)
}

// Fold applies full Unicode case folding, the same transform FoldFunction
// applies inside queries.
func Fold(s string) string {
	// A Caser keeps state and must not be shared between goroutines.
	return cases.Fold().String(s)
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return Fold(v), nil
	case []byte:
		return Fold(string(v)), nil
	default:
		return v, nil
	}
}
