package outwriter

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

func TestCreateFormatters(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		value     float64
		expected  string
	}{
		{name: "precision 1", precision: 1, value: 66.666, expected: "66.7"},
		{name: "precision 2", precision: 2, value: 3.14159, expected: "3.14"},
		{name: "negative value", precision: 2, value: -42.567, expected: "-42.57"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fmtFloat, intFmt := createFormatters(tt.precision)
			assert.Equal(t, tt.expected, fmtFloat(tt.value))
			assert.Equal(t, "%d", intFmt)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]any{"name": "test", "value": 42}))
	assert.Equal(t, "{\n  \"name\": \"test\",\n  \"value\": 42\n}\n", buf.String())

	assert.Error(t, writeJSON(&buf, make(chan int)))
}

func TestWriteCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"a", "b"}, func(w *csv.Writer) error {
		return w.Write([]string{"1", "x,y"})
	})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", buf.String())

	err = writeCSVWithHeader(&buf, []string{"a"}, func(*csv.Writer) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWriteWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	err := writeWithFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	}, "Wrote text")
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))

	err = writeWithFile(filepath.Join(t.TempDir(), "missing", "out.txt"), func(w io.Writer) error {
		return nil
	}, "Wrote text")
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1,000"},
		{5_000_000, "$5,000,000"},
		{1234567.6, "$1,234,568"},
		{-2500, "-$2,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(tt.in))
	}
}

func TestLabels(t *testing.T) {
	plain := &contract.Config{UseColors: false}
	assert.Equal(t, "High", riskLabel(schema.HighRisk, plain))
	assert.Equal(t, "ok", statusLabel(schema.Diagnostic{Method: "rule"}, plain))
	assert.Equal(t, "degraded", statusLabel(schema.Diagnostic{Degraded: true}, plain))

	var buf bytes.Buffer
	require.NoError(t, heading(&buf, "Title", plain))
	assert.Equal(t, "Title\n", buf.String())
}
