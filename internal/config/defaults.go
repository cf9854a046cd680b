package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/axisconstrain/
//   - Linux:   $XDG_CONFIG_HOME/axisconstrain/ or ~/.config/axisconstrain/
//   - Windows: %APPDATA%\axisconstrain\
//
// AXISCONSTRAIN_CONFIG_DIR overrides all of these.
func PlatformConfigDir() string {
	if dir := os.Getenv("AXISCONSTRAIN_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "axisconstrain")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "axisconstrain")
		}
		return filepath.Join(home, "AppData", "Roaming", "axisconstrain")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "axisconstrain")
		}
		return filepath.Join(home, ".config", "axisconstrain")
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/axisconstrain/
//   - Linux:   $XDG_STATE_HOME/axisconstrain/ or ~/.local/state/axisconstrain/
//   - Windows: %LOCALAPPDATA%\axisconstrain\logs\
func PlatformLogDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "axisconstrain")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "axisconstrain", "logs")
		}
		return filepath.Join(home, "AppData", "Local", "axisconstrain", "logs")
	default:
		if state := os.Getenv("XDG_STATE_HOME"); state != "" {
			return filepath.Join(state, "axisconstrain")
		}
		return filepath.Join(home, ".local", "state", "axisconstrain")
	}
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

// FindConfigFile searches the current directory and then the platform config
// directory for config.<ext>. Returns "" when none is found.
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
