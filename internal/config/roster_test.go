package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Roster
		wantErr bool
	}{
		{
			name: "valid roster",
			input: `payload:
  - name: alice
    validation_time: 300
  - name: bob
    validation_time: 60
`,
			want: Roster{
				"alice": 5 * time.Minute,
				"bob":   time.Minute,
			},
		},
		{
			name:    "empty payload",
			input:   "payload: []\n",
			wantErr: true,
		},
		{
			name: "empty holder name",
			input: `payload:
  - name: ""
    validation_time: 60
`,
			wantErr: true,
		},
		{
			name: "zero validation time",
			input: `payload:
  - name: alice
    validation_time: 0
`,
			wantErr: true,
		},
		{
			name: "duplicate holder",
			input: `payload:
  - name: alice
    validation_time: 60
  - name: alice
    validation_time: 120
`,
			wantErr: true,
		},
		{
			name:    "malformed document",
			input:   "payload: {not a list}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roster, err := ParseRoster([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, roster)
		})
	}
}

func TestFileRosterLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	content := `payload:
  - name: alice
    validation_time: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	roster, err := FileRosterLoader(path)()
	require.NoError(t, err)
	assert.Equal(t, Roster{"alice": 5 * time.Second}, roster)
}

func TestFileRosterLoader_MissingFile(t *testing.T) {
	_, err := FileRosterLoader(filepath.Join(t.TempDir(), "absent.yaml"))()
	assert.Error(t, err)
}

func TestStaticRosterLoader(t *testing.T) {
	source := Roster{"alice": time.Minute}
	roster, err := StaticRosterLoader(source)()
	require.NoError(t, err)
	assert.Equal(t, source, roster)

	// Loader hands out a copy; mutating it must not alias the source.
	roster["mallory"] = time.Hour
	_, present := source["mallory"]
	assert.False(t, present)

	_, err = StaticRosterLoader(nil)()
	assert.Error(t, err)
}
