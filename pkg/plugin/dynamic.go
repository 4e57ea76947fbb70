// Dynamic plugin loading support for Go's plugin system.
// This is only available on Linux and requires the plugindyn build tag.
//go:build plugindyn && linux

package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// LoadDynamicPlugins loads .so plugins from pluginDir and returns how many
// were loaded. If no directory is given it uses MEETSL_PLUGIN_PATH or
// DefaultPluginDir. A missing directory is not an error.
func LoadDynamicPlugins(pluginDir string) (int, error) {
	pluginDir = PluginDir(pluginDir)

	if _, err := os.Stat(pluginDir); os.IsNotExist(err) {
		return 0, nil
	}

	soFiles, err := filepath.Glob(filepath.Join(pluginDir, "*.so"))
	if err != nil {
		return 0, fmt.Errorf("failed to search for plugin files in %s: %w", pluginDir, err)
	}

	loaded := 0
	for _, soFile := range soFiles {
		if err := loadPlugin(soFile); err != nil {
			return loaded, fmt.Errorf("failed to load plugin %s: %w", soFile, err)
		}
		loaded++
	}

	if loaded > 0 {
		slog.Info("Loaded dynamic plugins",
			slog.Int("count", loaded),
			slog.String("directory", pluginDir))
	}
	return loaded, nil
}

// loadPlugin opens one .so file and calls its RegisterPlugins function,
// which registers providers into the global registry.
func loadPlugin(soFile string) error {
	p, err := plugin.Open(soFile)
	if err != nil {
		return fmt.Errorf("failed to open plugin file: %w", err)
	}

	sym, err := p.Lookup("RegisterPlugins")
	if err != nil {
		return fmt.Errorf("plugin does not export RegisterPlugins function: %w", err)
	}

	register, ok := sym.(func() error)
	if !ok {
		return fmt.Errorf("RegisterPlugins function has invalid signature %T", sym)
	}
	if err := register(); err != nil {
		return fmt.Errorf("plugin registration failed: %w", err)
	}

	slog.Info("Successfully loaded plugin",
		slog.String("name", strings.TrimSuffix(filepath.Base(soFile), ".so")),
		slog.String("file", soFile))
	return nil
}
