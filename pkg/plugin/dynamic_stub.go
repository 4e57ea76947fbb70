// Stub implementation for dynamic plugin loading when not supported.
//go:build !plugindyn || !linux

package plugin

// LoadDynamicPlugins always fails with ErrDynamicUnsupported.
func LoadDynamicPlugins(pluginDir string) (int, error) {
	return 0, ErrDynamicUnsupported
}
