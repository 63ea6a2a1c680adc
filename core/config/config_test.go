package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := defaultConfig()

	assert.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Empty(t, cfg.HistoryPath())
	assert.Empty(t, cfg.EventLog)
	assert.NotEmpty(t, cfg.Prompt)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Configuration)
		field  string
	}{
		"bad color": {
			mutate: func(c *Configuration) { c.Color = "sometimes" },
			field:  "color",
		},
		"port too large": {
			mutate: func(c *Configuration) { c.SSH.Port = 65536 },
			field:  "port",
		},
		"negative throttle": {
			mutate: func(c *Configuration) { c.SSH.OutputBytesPerSecond = -1 },
			field:  "output_bytes_per_second",
		},
		"duplicate users": {
			mutate: func(c *Configuration) {
				c.SSH.Users = []User{{Username: "a"}, {Username: "a"}}
			},
			field: "users",
		},
		"missing username": {
			mutate: func(c *Configuration) { c.SSH.Users = []User{{}} },
			field:  "username",
		},
		"bad variable name": {
			mutate: func(c *Configuration) {
				c.Environment = map[string]string{"NOT-VALID": "x"}
			},
			field: "environment",
		},
		"variable name with equals": {
			mutate: func(c *Configuration) {
				c.Environment = map[string]string{"A=B": "C"}
			},
			field: "environment",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestLoadFs(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, ConfigurationName, []byte("promt: oops\n"), 0600))

		_, err := LoadFs(fs)

		assert.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, ConfigurationName, []byte("color: purple\n"), 0600))

		_, err := LoadFs(fs)

		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFs(afero.NewMemMapFs())

		assert.Error(t, err)
	})
}

func TestConfiguration_GetPasswords(t *testing.T) {
	cfg := &Configuration{SSH: SSH{Users: []User{
		{Username: "alice", Passwords: []string{"a1", "a2"}},
		{Username: "bob", Passwords: []string{"b1"}},
	}}}

	assert.Equal(t, []string{"a1", "a2"}, cfg.GetPasswords("alice"))
	assert.Empty(t, cfg.GetPasswords("mallory"))
}

func TestConfiguration_UseColor(t *testing.T) {
	for mode, expected := range map[string][2]bool{
		ColorAuto:   {false, true},
		ColorAlways: {true, true},
		ColorNever:  {false, false},
	} {
		cfg := &Configuration{Color: mode}

		assert.Equal(t, expected[0], cfg.UseColor(false), mode)
		assert.Equal(t, expected[1], cfg.UseColor(true), mode)
	}
}

func TestConfiguration_Environ(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root"}
	cfg := &Configuration{Environment: map[string]string{"EXTRA": "1"}}

	assert.Equal(t, []string{"EXTRA=1"}, cfg.Environ(base))

	cfg.InheritEnvironment = true
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "EXTRA=1"}, cfg.Environ(base))
}
