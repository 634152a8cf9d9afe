package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	envAPIToken = "AMM_API_TOKEN"
	envAPIURL   = "AMM_API_URL"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig represents the credentials stored in config.json
type GlobalConfig struct {
	APIToken string `json:"api_token"`
	APIURL   string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "amm"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// Credentials is the resolved token and base URL. The URL falls back to
// http://localhost:8080 independently of the token.
type Credentials struct {
	Source   CredentialSource
	APIToken string
	APIURL   string
}

// ResolveCredentials checks, in order, flags, environment and the global
// config. The source reported is the one that supplied the token.
func ResolveCredentials(flagToken, flagURL string) (Credentials, error) {
	creds := Credentials{Source: SourceNone, APIToken: flagToken, APIURL: flagURL}
	if creds.APIToken != "" {
		creds.Source = SourceFlag
	}

	if creds.APIToken == "" {
		if token := os.Getenv(envAPIToken); token != "" {
			creds.APIToken = token
			creds.Source = SourceEnv
		}
	}
	if creds.APIURL == "" {
		creds.APIURL = os.Getenv(envAPIURL)
	}

	if creds.APIToken == "" || creds.APIURL == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return Credentials{}, err
		}
		if global != nil {
			if creds.APIToken == "" && global.APIToken != "" {
				creds.APIToken = global.APIToken
				creds.Source = SourceGlobalConfig
			}
			if creds.APIURL == "" {
				creds.APIURL = global.APIURL
			}
		}
	}

	if creds.APIURL == "" {
		creds.APIURL = defaultAPIURL
	}
	return creds, nil
}
