package config

import "testing"

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		base     Config
		expected Config
	}{
		{
			name: "no overrides keeps defaults",
			env:  map[string]string{},
			base: Config{Port: 8080, Parallel: 3, PreFetch: 2},
			expected: Config{
				Port:     8080,
				Parallel: 3,
				PreFetch: 2,
			},
		},
		{
			name: "port and parallel overridden",
			env:  map[string]string{"PORT": "9090", "PARALLEL": "5"},
			base: Config{Port: 8080, Parallel: 3, PreFetch: 2},
			expected: Config{
				Port:     9090,
				Parallel: 5,
				PreFetch: 2,
			},
		},
		{
			name: "hide_catalog truthy values",
			env:  map[string]string{"HIDE_CATALOG": "true"},
			base: Config{Port: 8080},
			expected: Config{
				Port:        8080,
				HideCatalog: true,
			},
		},
		{
			name: "invalid numeric env is ignored",
			env:  map[string]string{"PORT": "not-a-number"},
			base: Config{Port: 8080},
			expected: Config{
				Port: 8080,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg := tt.base
			applyEnvOverrides(&cfg)

			if cfg.Port != tt.expected.Port {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.expected.Port)
			}
			if cfg.Parallel != tt.expected.Parallel {
				t.Errorf("Parallel = %d, want %d", cfg.Parallel, tt.expected.Parallel)
			}
			if cfg.PreFetch != tt.expected.PreFetch {
				t.Errorf("PreFetch = %d, want %d", cfg.PreFetch, tt.expected.PreFetch)
			}
			if cfg.HideCatalog != tt.expected.HideCatalog {
				t.Errorf("HideCatalog = %v, want %v", cfg.HideCatalog, tt.expected.HideCatalog)
			}
		})
	}
}

func TestLoadRequiresClients(t *testing.T) {
	t.Setenv("PORT", "8080")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when no clients are configured and no config file exists")
	}
}
