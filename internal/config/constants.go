package config

// Default paths and limits
const (
	// DefaultDatabasePath is the default path for the collections database
	DefaultDatabasePath = "./mapimport.db"

	// DefaultMaxRemoteBytes caps the size of a fetched remote payload
	DefaultMaxRemoteBytes = 50 << 20

	// ConfigFileEnv names the environment variable pointing at an optional
	// YAML configuration file
	ConfigFileEnv = "MAPIMPORT_CONFIG"
)
