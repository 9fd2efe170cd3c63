package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseMemoryLimit verifies human-readable memory strings are converted to bytes.
func TestParseMemoryLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "empty string returns zero", input: "", want: 0},
		{name: "zero string returns zero", input: "0", want: 0},
		{name: "megabytes suffix", input: "512m", want: 512 * 1024 * 1024},
		{name: "gigabytes suffix", input: "2g", want: 2 * 1024 * 1024 * 1024},
		{name: "kilobytes suffix", input: "1024k", want: 1024 * 1024},
		{name: "uppercase is case-insensitive", input: "1G", want: 1024 * 1024 * 1024},
		{name: "bare integer treated as bytes", input: "100", want: 100},
		{name: "whitespace is trimmed", input: "  512m  ", want: 512 * 1024 * 1024},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "float value returns error", input: "12.5m", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseMemoryLimit(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseCPULimit verifies CPU strings are converted to Docker CPU quota.
func TestParseCPULimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "empty string returns zero", input: "", want: 0},
		{name: "zero string returns zero", input: "0", want: 0},
		{name: "whole cpus", input: "2", want: 200000},
		{name: "fractional cpus", input: "0.5", want: 50000},
		{name: "quarter cpu", input: "0.25", want: 25000},
		{name: "whitespace is trimmed", input: " 1 ", want: 100000},
		{name: "non-numeric returns error", input: "two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseCPULimit(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResourceNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mb-tenant-joes-garage", namespaceName("joes-garage"))
	assert.Equal(t, "mb-data-joes-garage", dataVolumeName("joes-garage"))
	assert.Equal(t, "mb-db-joes-garage", dbContainerName("joes-garage"))
	assert.Equal(t, "mb-api-joes-garage", apiContainerName("joes-garage"))
}
