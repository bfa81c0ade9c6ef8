package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SONARQUBE_URL", "")
	t.Setenv("SONARQUBE_TOKEN", "")
	t.Setenv("SONARCLOUD_URL", "")
	t.Setenv("CLOUDVOYAGER_STATE_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://sonarcloud.io", cfg.SonarCloud.URL)
	assert.Equal(t, 500, cfg.Sync.BatchSize)
	assert.Equal(t, 5, cfg.Sync.IssueWorkers)
	assert.Equal(t, 5, cfg.Sync.HotspotWorkers)
	assert.Equal(t, 10, cfg.Sync.HotspotFetchWorkers)
	assert.Contains(t, cfg.Sync.StateFile, ".cloudvoyager")
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SONARQUBE_URL", "https://sonar.internal.example.com/")
	t.Setenv("SONARQUBE_TOKEN", "sqtoken")
	t.Setenv("SONARCLOUD_URL", "https://sonarcloud.example.com")
	t.Setenv("SONARCLOUD_TOKEN", "sctoken")
	t.Setenv("SONARCLOUD_ORGANIZATION", "my-org")
	t.Setenv("CLOUDVOYAGER_STATE_FILE", "/tmp/voyager-state.json")
	t.Setenv("CLOUDVOYAGER_BATCH_SIZE", "100")
	t.Setenv("CLOUDVOYAGER_ISSUE_WORKERS", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Trailing slashes are trimmed so URL joining stays predictable.
	assert.Equal(t, "https://sonar.internal.example.com", cfg.SonarQube.URL)
	assert.Equal(t, "sqtoken", cfg.SonarQube.Token)
	assert.Equal(t, "my-org", cfg.SonarCloud.Organization)
	assert.Equal(t, "/tmp/voyager-state.json", cfg.Sync.StateFile)
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.IssueWorkers)
}

func TestValidateSourceConfig(t *testing.T) {
	testCases := []struct {
		name      string
		url       string
		token     string
		wantError string
	}{
		{"Complete", "https://sonar.example.com", "token", ""},
		{"Missing URL", "", "token", "SONARQUBE_URL"},
		{"Missing token", "https://sonar.example.com", "", "SONARQUBE_TOKEN"},
		{"Missing both", "", "", "SONARQUBE_URL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{SonarQube: SonarQubeConfig{URL: tc.url, Token: tc.token}}
			err := ValidateSourceConfig(cfg)

			if tc.wantError == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantError)
			}
		})
	}
}

func TestValidateDestinationConfig(t *testing.T) {
	testCases := []struct {
		name         string
		url          string
		token        string
		organization string
		wantError    string
	}{
		{"Complete", "https://sonarcloud.io", "token", "my-org", ""},
		{"Missing token", "https://sonarcloud.io", "", "my-org", "SONARCLOUD_TOKEN"},
		{"Missing organization", "https://sonarcloud.io", "token", "", "SONARCLOUD_ORGANIZATION"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{SonarCloud: SonarCloudConfig{
				URL:          tc.url,
				Token:        tc.token,
				Organization: tc.organization,
			}}
			err := ValidateDestinationConfig(cfg)

			if tc.wantError == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantError)
			}
		})
	}
}
