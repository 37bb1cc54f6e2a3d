package settings

import (
	"fmt"
	"slices"
	"strings"
)

// IDBType selects the revision store backend.
type IDBType string

const (
	SQLITE   IDBType = "sqlite"
	MEMORY   IDBType = "memory"
	POSTGRES IDBType = "postgres"
	MYSQL    IDBType = "mysql"
	REDIS    IDBType = "redis"
)

var dbTypes = []IDBType{SQLITE, MEMORY, POSTGRES, MYSQL, REDIS}

// ParseDBType accepts a backend name in any case.
func ParseDBType(s string) (IDBType, error) {
	dbType := IDBType(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(dbTypes, dbType) {
		return "", fmt.Errorf("unknown DB type %q, expected one of %v", s, dbTypes)
	}
	return dbType, nil
}

func (dbType IDBType) String() string {
	return string(dbType)
}
