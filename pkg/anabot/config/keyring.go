// Package config – keyring.go resolves credentials from the operating
// system's native keyring (Linux: Secret Service, macOS: Keychain,
// Windows: Credential Manager).
//
// Priority for resolving each secret:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable (OPENAI_API_KEY, EVOLUTION_API_KEY, RD_ACCESS_TOKEN)
//  3. .env file (loaded by godotenv before parsing)
//  4. Config file value (least secure — plaintext on disk)
package config

import (
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "anabot"

// Keyring key names.
const (
	KeyringLLMAPIKey      = "llm_api_key"
	KeyringWhatsAppAPIKey = "whatsapp_api_key"
	KeyringCRMAccessToken = "crm_access_token"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found or the keyring is unavailable.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// resolveSecrets fills empty credential fields from the keyring and
// well-known environment variables, in that order.
func resolveSecrets(cfg *Config) {
	cfg.LLM.APIKey = resolveSecret(cfg.LLM.APIKey, KeyringLLMAPIKey, "OPENAI_API_KEY")
	cfg.WhatsApp.APIKey = resolveSecret(cfg.WhatsApp.APIKey, KeyringWhatsAppAPIKey, "EVOLUTION_API_KEY")
	cfg.CRM.AccessToken = resolveSecret(cfg.CRM.AccessToken, KeyringCRMAccessToken, "RD_ACCESS_TOKEN")
}

// resolveSecret returns the first non-empty value among keyring, env var
// and the current config value.
func resolveSecret(current, keyringKey, envVar string) string {
	if v := GetKeyring(keyringKey); v != "" {
		return v
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return current
}
