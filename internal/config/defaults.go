package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/inputkit/
//   - Linux:   $XDG_CONFIG_HOME/inputkit/ (default ~/.config/inputkit/)
//   - Windows: %APPDATA%\inputkit\
func PlatformConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "inputkit")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "inputkit")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "inputkit")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "inputkit")
		}
		return filepath.Join(homeDir, ".config", "inputkit")
	}
}

// ConfigPath returns the config file path: $INPUTKIT_CONFIG when set,
// otherwise config.toml in the platform config directory.
func ConfigPath() string {
	if p := os.Getenv("INPUTKIT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches the current directory, then the platform config
// directory, for config.<ext>. It returns "" when nothing is found.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
