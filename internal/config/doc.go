// Package config loads process configuration with viper (TOML file, SOFTDL_
// environment variables, .env files) and keeps per-user UI preferences in
// Fyne preferences.
package config
