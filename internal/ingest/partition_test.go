package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionByDate_MultiDate(t *testing.T) {
	// Dates deliberately out of calendar order: file order must win
	text := strings.Join([]string{
		"600519\t2024-01-16\t1100000",
		"600519\t2024-01-15\t1000000",
		"",
		"000858\t2024-01-16\t2500000",
		"600519\t2024-01-17\t900000",
	}, "\n")

	part, err := PartitionByDate(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-16", "2024-01-15", "2024-01-17"}, part.Dates)
	assert.Len(t, part.Lines["2024-01-16"], 2)
	assert.Len(t, part.Lines["2024-01-15"], 1)
	assert.Equal(t, 0, part.Skipped)
}

func TestPartitionByDate_SkipsUndatedLines(t *testing.T) {
	text := strings.Join([]string{
		"code,name,date,volume,turnover,change",
		"600519,贵州茅台,2024-01-15,1000000,1650000000,1.25",
		"000858,五粮液,2024-01-16,2500000,380000000,-0.80",
	}, "\n")

	part, err := PartitionByDate(strings.NewReader(text))
	require.NoError(t, err)

	assert.Equal(t, 1, part.Skipped) // the header
	assert.Equal(t, []string{"2024-01-15", "2024-01-16"}, part.Dates)
}

func TestPartitionByDate_Empty(t *testing.T) {
	part, err := PartitionByDate(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, part.Dates)
}

func TestExtractLineDate(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"600519\t2024-01-15\t1000000", "2024-01-15", true},
		{"600519,贵州茅台,2024/01/15,1000000,1,1", "2024-01-15", true},
		{"600519 20240115 1000000", "2024-01-15", true},
		{"code,name,date,volume,turnover,change", "", false},
		{"no date at all", "", false},
	}

	for _, tt := range tests {
		got, ok := extractLineDate(tt.line)
		assert.Equal(t, tt.ok, ok, "line %q", tt.line)
		if tt.ok {
			assert.Equal(t, tt.want, got, "line %q", tt.line)
		}
	}
}
