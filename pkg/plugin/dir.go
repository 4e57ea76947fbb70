package plugin

import (
	"errors"
	"os"
)

// DefaultPluginDir is searched for .so plugins when nothing else is set.
const DefaultPluginDir = "/usr/local/lib/meetsl/plugins"

// ErrDynamicUnsupported is returned by LoadDynamicPlugins in builds without
// the plugindyn tag or on platforms other than Linux.
var ErrDynamicUnsupported = errors.New("dynamic plugin loading not supported on this platform or build configuration (use -tags=plugindyn on Linux)")

// PluginDir resolves the dynamic plugin directory: dir if set, then
// MEETSL_PLUGIN_PATH, then DefaultPluginDir.
func PluginDir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv("MEETSL_PLUGIN_PATH"); env != "" {
		return env
	}
	return DefaultPluginDir
}
