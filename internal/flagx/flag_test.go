package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-d", "pos.db"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "equals form",
			args:         []string{"-config=alt.json", "-d", "pos.db"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "flag without value at end",
			args:         []string{"-c"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-r", "-n", "front"},
			allowedFlags: []string{"-r", "-n"},
			want:         []string{"-r", "-n", "front"},
		},
		{
			name:         "several allowed flags keep order",
			args:         []string{"-d", "pos.db", "-x", "1", "-m", "5"},
			allowedFlags: []string{"-d", "-m"},
			want:         []string{"-d", "pos.db", "-m", "5"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c", func(t *testing.T) {
		os.Args = []string{"register", "-c", "/etc/lanpos/short.json"}
		assert.Equal(t, "/etc/lanpos/short.json", JsonConfigFlags())
	})

	t.Run("long -config", func(t *testing.T) {
		os.Args = []string{"register", "-config", "/etc/lanpos/long.json"}
		assert.Equal(t, "/etc/lanpos/long.json", JsonConfigFlags())
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "/etc/lanpos/env.json")
		os.Args = []string{"register"}
		assert.Equal(t, "/etc/lanpos/env.json", JsonConfigFlags())
	})

	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "/etc/lanpos/env.json")
		os.Args = []string{"register", "-c", "/etc/lanpos/flag.json"}
		assert.Equal(t, "/etc/lanpos/flag.json", JsonConfigFlags())
	})

	t.Run("nothing given", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "")
		os.Args = []string{"register", "-x", "1"}
		assert.Empty(t, JsonConfigFlags())
	})
}
