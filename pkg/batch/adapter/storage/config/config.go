package config

// StorageConfig holds configuration for a single storage connection (adapter.storage.<name>).
type StorageConfig struct {
	Type            string `yaml:"type"`             // "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Default bucket when an operation passes none.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS.
	Endpoint        string `yaml:"endpoint"`         // Alternative GCS endpoint, e.g. an emulator.
	BaseDir         string `yaml:"base_dir"`         // Root directory for local storage.
}
