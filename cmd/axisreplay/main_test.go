package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `
config: {threshold: 5, sticky: true, release_after_ms: 100}
steps:
  - {at_ms: 0, axis: x, value: 6}
  - {at_ms: 150, axis: y, value: 6}
`

func TestRunFromStdinJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("-", "json", false, strings.NewReader(script), &out))

	var results []struct {
		Out  int32  `json:"out"`
		Lock string `json:"lock"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Lock)
	assert.Equal(t, "y", results[1].Lock)
	assert.Equal(t, int32(6), results[1].Out)
}

func TestRunFile(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run("../../testdata/release.yaml", "text", false, nil, &out))
	assert.Contains(t, out.String(), "lock")
}

func TestRunUnknownFormat(t *testing.T) {
	err := run("-", "xml", false, strings.NewReader(script), &bytes.Buffer{})
	assert.Error(t, err)
}
