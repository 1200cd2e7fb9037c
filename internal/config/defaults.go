package config

import "strings"

// DefaultSchemaForDialect returns the default namespace for a dialect.
// Dialects without namespaces (sqlite, mysql) return "".
func DefaultSchemaForDialect(dialect string) string {
	switch strings.ToLower(dialect) {
	case "mssql":
		return "dbo"
	case "postgres":
		return "public"
	case "duckdb":
		return "main"
	default:
		return ""
	}
}

// defaultPorts maps network dialects to their conventional ports.
var defaultPorts = map[string]int{
	"mssql":    1433,
	"postgres": 5432,
	"mysql":    3306,
}

// ApplyDialectDefaults fills schema and port defaults based on the dialect.
func ApplyDialectDefaults(c *DatabaseConfig) {
	if c == nil {
		return
	}
	dialect := strings.ToLower(c.Dialect)
	if c.Schema == "" {
		c.Schema = DefaultSchemaForDialect(dialect)
	}
	if c.Port == 0 {
		if port, ok := defaultPorts[dialect]; ok {
			c.Port = port
		}
	}
}
