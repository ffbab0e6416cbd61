package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/schema"
)

func TestGetColorLabel(t *testing.T) {
	for _, risk := range []schema.RiskLevel{schema.LowRisk, schema.MediumRisk, schema.HighRisk} {
		t.Run(string(risk), func(t *testing.T) {
			assert.Contains(t, GetColorLabel(risk), string(risk))
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "out.json")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.FileExists(t, path)
}

func TestGetDBFilePaths(t *testing.T) {
	assert.True(t, strings.HasSuffix(GetCacheDBFilePath(), ".attribution_cache.db"))
	assert.True(t, strings.HasSuffix(GetAnalysisDBFilePath(), ".attribution_analysis.db"))
	assert.NotEqual(t, GetCacheDBFilePath(), GetAnalysisDBFilePath())
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "...6789", TruncateString("0123456789", 7))
	assert.Equal(t, "0123456789", TruncateString("0123456789", 3))
}

func TestParseBoolString(t *testing.T) {
	tests := []struct {
		input     string
		want      bool
		expectErr bool
	}{
		{"yes", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"no", false, false},
		{"False", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBoolString(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
