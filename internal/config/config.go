// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	SonarQube  SonarQubeConfig
	SonarCloud SonarCloudConfig
	Sync       SyncConfig
}

// SonarQubeConfig holds source-server specific configuration.
type SonarQubeConfig struct {
	URL   string
	Token string
}

// SonarCloudConfig holds destination-server specific configuration.
type SonarCloudConfig struct {
	URL          string
	Token        string
	Organization string
}

// SyncConfig holds tuning parameters for the transfer and reconciliation engines.
type SyncConfig struct {
	// StateFile is the path of the incremental transfer state file.
	StateFile string

	// BatchSize is the page size used for paginated finding extraction.
	BatchSize int

	// IssueWorkers bounds concurrent issue reconciliation.
	IssueWorkers int

	// HotspotWorkers bounds concurrent hotspot reconciliation.
	HotspotWorkers int

	// HotspotFetchWorkers bounds concurrent hotspot detail extraction.
	HotspotFetchWorkers int
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("sonarqube.url", "SONARQUBE_URL")
	v.BindEnv("sonarqube.token", "SONARQUBE_TOKEN")
	v.BindEnv("sonarcloud.url", "SONARCLOUD_URL")
	v.BindEnv("sonarcloud.token", "SONARCLOUD_TOKEN")
	v.BindEnv("sonarcloud.organization", "SONARCLOUD_ORGANIZATION")
	v.BindEnv("sync.statefile", "CLOUDVOYAGER_STATE_FILE")
	v.BindEnv("sync.batchsize", "CLOUDVOYAGER_BATCH_SIZE")
	v.BindEnv("sync.issueworkers", "CLOUDVOYAGER_ISSUE_WORKERS")
	v.BindEnv("sync.hotspotworkers", "CLOUDVOYAGER_HOTSPOT_WORKERS")
	v.BindEnv("sync.hotspotfetchworkers", "CLOUDVOYAGER_HOTSPOT_FETCH_WORKERS")

	v.SetDefault("sonarcloud.url", "https://sonarcloud.io")
	v.SetDefault("sync.batchsize", 500)
	v.SetDefault("sync.issueworkers", 5)
	v.SetDefault("sync.hotspotworkers", 5)
	v.SetDefault("sync.hotspotfetchworkers", 10)

	stateFile := v.GetString("sync.statefile")
	if stateFile == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		stateFile = filepath.Join(home, ".cloudvoyager", "state.json")
	}

	config := &Config{
		SonarQube: SonarQubeConfig{
			URL:   strings.TrimRight(v.GetString("sonarqube.url"), "/"),
			Token: v.GetString("sonarqube.token"),
		},
		SonarCloud: SonarCloudConfig{
			URL:          strings.TrimRight(v.GetString("sonarcloud.url"), "/"),
			Token:        v.GetString("sonarcloud.token"),
			Organization: v.GetString("sonarcloud.organization"),
		},
		Sync: SyncConfig{
			StateFile:           stateFile,
			BatchSize:           v.GetInt("sync.batchsize"),
			IssueWorkers:        v.GetInt("sync.issueworkers"),
			HotspotWorkers:      v.GetInt("sync.hotspotworkers"),
			HotspotFetchWorkers: v.GetInt("sync.hotspotfetchworkers"),
		},
	}

	return config, nil
}

// ValidateSourceConfig ensures the source-server configuration is complete.
func ValidateSourceConfig(config *Config) error {
	var missingVars []string

	if config.SonarQube.URL == "" {
		missingVars = append(missingVars, "SONARQUBE_URL")
	}
	if config.SonarQube.Token == "" {
		missingVars = append(missingVars, "SONARQUBE_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// ValidateDestinationConfig ensures the destination-server configuration is complete.
func ValidateDestinationConfig(config *Config) error {
	var missingVars []string

	if config.SonarCloud.URL == "" {
		missingVars = append(missingVars, "SONARCLOUD_URL")
	}
	if config.SonarCloud.Token == "" {
		missingVars = append(missingVars, "SONARCLOUD_TOKEN")
	}
	if config.SonarCloud.Organization == "" {
		missingVars = append(missingVars, "SONARCLOUD_ORGANIZATION")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
