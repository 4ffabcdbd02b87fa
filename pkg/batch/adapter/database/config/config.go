package config

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings (adapter.database.<name>).
type DatabaseConfig struct {
	Type     string     `yaml:"type"` // "sqlite", "postgres" or "mysql".
	Host     string     `yaml:"host"`
	Port     int        `yaml:"port"`
	Database string     `yaml:"database"` // Database name, or the file path for sqlite.
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	Sslmode  string     `yaml:"sslmode"`
	LogLevel string     `yaml:"log_level"` // ORM log level; SILENT when empty.
	Pool     PoolConfig `yaml:"pool"`
}
