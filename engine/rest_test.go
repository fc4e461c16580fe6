package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoPath(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "https with .git suffix",
			url:  "https://github.com/owner/vault.git",
			want: "owner/vault",
		},
		{
			name: "https without suffix",
			url:  "https://github.com/owner/vault",
			want: "owner/vault",
		},
		{
			name: "trailing slash",
			url:  "https://github.com/owner/vault/",
			want: "owner/vault",
		},
		{
			name:    "missing repository name",
			url:     "https://github.com/owner",
			wantErr: true,
		},
		{
			name:    "extra path segments",
			url:     "https://github.com/owner/vault/tree/main",
			wantErr: true,
		},
		{
			name:    "not a URL",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepoPath(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
