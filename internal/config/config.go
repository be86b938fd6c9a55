// Package config parses the gateway's YAML configuration file into the
// Location Registry bindings the rest of the process needs (spec §4.2,
// §6 "Configuration"): the `locationConstraints` map, the top-level
// `backends.data` selector, and per-location cloud credentials, with
// environment variables overriding whatever the file says.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DataBackend is the top-level single/multi-backend selector (spec §6:
// "backends.data ∈ {mem, file, multiple, cdmi}").
type DataBackend string

const (
	DataBackendMem      DataBackend = "mem"
	DataBackendFile     DataBackend = "file"
	DataBackendMultiple DataBackend = "multiple"
	DataBackendCDMI     DataBackend = "cdmi"
)

// Config is the top-level gateway configuration.
type Config struct {
	Backends            Backends                      `yaml:"backends"`
	LocationConstraints map[string]LocationConstraint `yaml:"locationConstraints"`
	DefaultLocation     string                        `yaml:"defaultLocation"`
	FileBackendRoot     string                        `yaml:"fileBackendRoot"`
	ListenAddress       string                        `yaml:"listenAddress"`
}

// Backends holds the process-wide backend family selector.
type Backends struct {
	Data DataBackend `yaml:"data"`
}

// LocationConstraint is one entry of the locationConstraints map.
type LocationConstraint struct {
	Type    string          `yaml:"type"`
	Details LocationDetails `yaml:"details"`
}

// LocationDetails holds the per-location connection parameters; which
// fields matter depends on Type.
type LocationDetails struct {
	BucketName     string `yaml:"bucketName"`
	BucketMatch    bool   `yaml:"bucketMatch"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Secure         bool   `yaml:"https"`
	CredentialsEnv string `yaml:"credentialsProfile"`

	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`

	AzureStorageAccountName string `yaml:"azureStorageAccountName"`
	AzureStorageAccessKey   string `yaml:"azureStorageAccessKey"`
	AzureContainerName      string `yaml:"azureContainerName"`

	GCPServiceKeyPath string `yaml:"gcpServiceKeyPath"`
	GCPBucketName     string `yaml:"gcpBucketName"`
}

// Load reads and parses the YAML configuration file at path, then applies
// environment variable overrides (spec §6 "Environment variables"):
// `{location}_AZURE_STORAGE_ACCOUNT_NAME`, `{location}_AZURE_STORAGE_ACCESS_KEY`
// and `GCP_CRED` (a service-account key file path shared by every gcp
// location, mirroring the single `GOOGLE_APPLICATION_CREDENTIALS`-style
// convention).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c.applyEnvOverrides()
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	for name, lc := range c.LocationConstraints {
		if v := os.Getenv(name + "_AZURE_STORAGE_ACCOUNT_NAME"); v != "" {
			lc.Details.AzureStorageAccountName = v
		}
		if v := os.Getenv(name + "_AZURE_STORAGE_ACCESS_KEY"); v != "" {
			lc.Details.AzureStorageAccessKey = v
		}
		if v := os.Getenv("GCP_CRED"); v != "" {
			lc.Details.GCPServiceKeyPath = v
		}
		c.LocationConstraints[name] = lc
	}
}
