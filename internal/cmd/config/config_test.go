package config

import (
	"bytes"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/devboot/internal/config"
)

func TestDefaultDocument_RoundTrip(t *testing.T) {
	content, err := yaml.Marshal(defaultDocument())
	if err != nil {
		t.Fatalf("yaml.Marshal failed: %v", err)
	}

	text := string(content)
	for _, want := range []string{"# DevBoot configuration", "supervisor:", "# Address 'devboot serve' listens on", "restart_delay: 2s"} {
		if !strings.Contains(text, want) {
			t.Errorf("generated config missing %q:\n%s", want, text)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	cfg, err := appconfig.LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, appconfig.Default()) {
		t.Errorf("loaded config = %+v, want defaults %+v", cfg, appconfig.Default())
	}
}

func TestSettingsCoverDefaults(t *testing.T) {
	v := viper.New()
	// Mirror SetDefaults on a private instance.
	defaults := appconfig.Default()
	for _, s := range settings {
		v.SetDefault(s.key, s.value(defaults))
	}
	keys := v.AllKeys()

	viper.Reset()
	t.Cleanup(viper.Reset)
	appconfig.SetDefaults()
	for _, key := range viper.AllKeys() {
		if !slices.Contains(keys, key) {
			t.Errorf("config key %q has no setting entry", key)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"supervisor.shell", "/bin/bash", "/bin/bash", false},
		{"logging.enabled", "false", false, false},
		{"logging.enabled", "maybe", nil, true},
		{"supervisor.max_restart_attempts", "10", 10, false},
		{"supervisor.max_restart_attempts", "-1", nil, true},
		{"supervisor.max_restart_attempts", "ten", nil, true},
		{"supervisor.restart_delay", "1500ms", (1500 * time.Millisecond).String(), false},
		{"supervisor.restart_delay", "soon", nil, true},
		{"logging.level", "WARN", "warn", false},
		{"logging.level", "loud", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s, ok := lookupSetting(tt.key)
			if !ok {
				t.Fatalf("unknown key %s", tt.key)
			}
			got, err := parseValue(s, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseValue = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLookupSetting_Unknown(t *testing.T) {
	if _, ok := lookupSetting("supervisor.nope"); ok {
		t.Error("lookupSetting accepted an unknown key")
	}
}
