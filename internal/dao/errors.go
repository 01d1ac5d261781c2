package dao

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicateKey reports a natural-key uniqueness violation. It indicates the caller wrote
// a key that should have been routed through an upsert; it is never retried.
var ErrDuplicateKey = errors.New("duplicate natural key")

// translateWriteErr maps driver-level unique violations onto ErrDuplicateKey. gorm's
// TranslateError covers the registered dialects; the string checks catch drivers that
// report the violation without a translator.
func translateWriteErr(err error, key any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return fmt.Errorf("%w: %+v: %v", ErrDuplicateKey, key, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
