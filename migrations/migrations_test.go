package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrdersByVersion(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	require.Len(t, all, 5)

	for i, m := range all {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.SQL)
	}
	assert.Equal(t, "create_users", all[0].Name)
	assert.Equal(t, "create_link_clicks", all[4].Name)
}

func TestLinksSchemaEnforcesUniqueShortCode(t *testing.T) {
	all, err := Load()
	require.NoError(t, err)
	assert.Contains(t, all[3].SQL, "CONSTRAINT uk_links_short_code UNIQUE (short_code)")
}

func TestParseName(t *testing.T) {
	tests := []struct {
		file    string
		version int
		name    string
		wantErr bool
	}{
		{file: "0007_add_index.sql", version: 7, name: "add_index"},
		{file: "12_x.sql", version: 12, name: "x"},
		{file: "noversion.sql", wantErr: true},
		{file: "abc_def.sql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m, err := parseName(tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, m.Version)
			assert.Equal(t, tt.name, m.Name)
		})
	}
}
