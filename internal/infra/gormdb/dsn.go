package gormdb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	mysqlDriver "gorm.io/driver/mysql"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dialector(ds *DataSourceConfig) (gorm.Dialector, error) {
	dsn, err := buildDSN(ds)
	if err != nil {
		return nil, err
	}
	switch ds.driver() {
	case DriverMySQL:
		return mysqlDriver.New(mysqlDriver.Config{DSN: dsn}), nil
	case DriverPostgres:
		return gormpg.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", ds.Driver)
	}
}

// buildDSN builds DSN from datasource pieces if DSN not provided.
func buildDSN(ds *DataSourceConfig) (string, error) {
	if strings.TrimSpace(ds.DSN) != "" {
		return ds.DSN, nil
	}
	switch ds.driver() {
	case DriverSQLite:
		if ds.Database == "" {
			return "", errors.New("database (file path) required for sqlite when dsn not provided")
		}
		return ds.Database, nil
	case DriverPostgres:
		if ds.Host == "" || ds.User == "" || ds.Database == "" {
			return "", errors.New("host, user, database required when dsn not provided")
		}
		port := ds.Port
		if port == 0 {
			port = 5432
		}
		parts := []string{
			"host=" + ds.Host,
			fmt.Sprintf("port=%d", port),
			"user=" + ds.User,
			"password=" + ds.Password,
			"dbname=" + ds.Database,
		}
		params := map[string]string{"sslmode": "disable", "TimeZone": "UTC"}
		for k, v := range ds.Params {
			params[k] = v
		}
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+"="+params[k])
		}
		return strings.Join(parts, " "), nil
	default:
		if ds.Host == "" || ds.User == "" || ds.Database == "" {
			return "", errors.New("host, user, database required when dsn not provided")
		}
		port := ds.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User, mc.Passwd = ds.User, ds.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", ds.Host, port)
		mc.DBName = ds.Database
		mc.ParseTime = true
		// Dates are stored and read as UTC midnight; any other loc shifts DATE columns by the offset.
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		for k, v := range ds.Params {
			switch k {
			case "parseTime":
				mc.ParseTime = v == "true"
			case "loc":
				loc, err := time.LoadLocation(v)
				if err != nil {
					return "", fmt.Errorf("mysql loc %q: %w", v, err)
				}
				mc.Loc = loc
			default:
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN(), nil
	}
}
