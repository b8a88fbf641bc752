package mysql

import (
	"fmt"
	"strings"
)

// maxIdentLen is the MySQL limit for a table or schema identifier.
const maxIdentLen = 64

// sanitizeTableName accepts "table" or "schema.table" made of [A-Za-z0-9_].
func sanitizeTableName(name string) (string, error) {
	if name == "" {
		return "", ErrTableNameRequired
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
	}
	for _, part := range parts {
		if part == "" || len(part) > maxIdentLen {
			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
		for _, r := range part {
			if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				continue
			}

			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
	}

	return name, nil
}

// indexSuffix derives an index name fragment from a possibly schema-qualified table.
func indexSuffix(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}

	return table
}
