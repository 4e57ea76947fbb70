package plugin

import "testing"

func TestPluginDir(t *testing.T) {
	t.Setenv("MEETSL_PLUGIN_PATH", "")
	if got := PluginDir(""); got != DefaultPluginDir {
		t.Errorf("PluginDir(\"\") = %q, want %q", got, DefaultPluginDir)
	}

	t.Setenv("MEETSL_PLUGIN_PATH", "/opt/plugins")
	if got := PluginDir(""); got != "/opt/plugins" {
		t.Errorf("PluginDir(\"\") = %q, want env value", got)
	}
	if got := PluginDir("/tmp/p"); got != "/tmp/p" {
		t.Errorf("PluginDir(\"/tmp/p\") = %q, want explicit value", got)
	}
}
