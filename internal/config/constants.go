package config

// DefaultDatabasePath is the default path for the accession register database.
const DefaultDatabasePath = "./growlin.db"
