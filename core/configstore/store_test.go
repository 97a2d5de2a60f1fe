package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvFolders = map[string]string{"CCCI_PROD": "PRD", "CCCI_SANDBOX": "DEV"}

func writeTestFile(t *testing.T, dir, folder, content string) {
	t.Helper()
	envDir := filepath.Join(dir, folder)
	require.NoError(t, os.MkdirAll(envDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "iflow_configuration.csv"), []byte(content), 0o644))
}

const sampleCSV = `iFlow_ID|iFlow_Name|iFlow_Version|Parameter_Key|Parameter_Value|Parameter_Type|Saved_At
FlowA|Flow A|1.0.0|endpoint|https://prod.example.com|xsd:string|2024-03-01T10:00:00Z
FlowA|Flow A|1.0.0|retries|3|xsd:integer|2024-03-01T10:00:00Z
FlowA|Flow A|2.0.0|endpoint|https://prod-v2.example.com|xsd:string|2024-03-01T10:00:00Z
FlowB|Flow B|1.0.0|timeout|30|xsd:integer|2024-03-01T10:00:00Z
`

func TestResolve_MatchesArtifactAndVersion(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "PRD", sampleCSV)
	s := New(dir, testEnvFolders)

	rows, err := s.Resolve("FlowA", "1.0.0", "CCCI_PROD")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "endpoint", rows[0].Key)
	assert.Equal(t, "https://prod.example.com", rows[0].Value)
	assert.Equal(t, "retries", rows[1].Key)
}

func TestResolve_NoMatchesIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "PRD", sampleCSV)
	s := New(dir, testEnvFolders)

	rows, err := s.Resolve("FlowC", "1.0.0", "CCCI_PROD")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResolve_MissingFileIsEmptyNotError(t *testing.T) {
	s := New(t.TempDir(), testEnvFolders)

	rows, err := s.Resolve("FlowA", "1.0.0", "CCCI_PROD")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResolve_UnmappedEnvironmentUsesUppercasedName(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "QA", sampleCSV)
	s := New(dir, testEnvFolders)

	rows, err := s.Resolve("FlowB", "1.0.0", "qa")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "timeout", rows[0].Key)
}

func TestResolve_SkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	bad := `iFlow_ID|iFlow_Name|iFlow_Version|Parameter_Key|Parameter_Value|Parameter_Type|Saved_At
FlowA|Flow A|1.0.0|endpoint|https://prod.example.com|xsd:string|2024-03-01T10:00:00Z
FlowA|truncated row
FlowA|Flow A|1.0.0|retries|3|xsd:integer|2024-03-01T10:00:00Z
`
	writeTestFile(t, dir, "PRD", bad)
	s := New(dir, testEnvFolders)

	rows, err := s.Resolve("FlowA", "1.0.0", "CCCI_PROD")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "endpoint", rows[0].Key)
	assert.Equal(t, "retries", rows[1].Key)
}

func TestSave_WritesBothEnvironmentFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testEnvFolders)

	result, err := s.Save("prd", []IFlowConfiguration{
		{
			IFlowID:   "FlowA",
			IFlowName: "Flow A",
			Version:   "1.0.0",
			Configurations: map[string]string{
				"endpoint": "https://prod.example.com",
				"retries":  "5",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalParameters)
	assert.Equal(t, 1, result.TotalIFlows)

	for _, name := range []string{"iflow_configuration.csv", "iflow_configuration_PRD.csv"} {
		_, err := os.Stat(filepath.Join(dir, "PRD", name))
		assert.NoError(t, err, name)
	}

	// Saved rows must round back through Resolve.
	rows, err := s.Resolve("FlowA", "1.0.0", "PRD")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "endpoint", rows[0].Key)
	assert.Equal(t, "xsd:string", rows[0].Type)
}

func TestListFiles_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "DEV", sampleCSV)
	writeTestFile(t, dir, "PRD", sampleCSV)
	s := New(dir, testEnvFolders)

	files, err := s.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestListFiles_MissingDirIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), testEnvFolders)
	files, err := s.ListFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoad_RejectsPathTraversal(t *testing.T) {
	s := New(t.TempDir(), testEnvFolders)
	_, err := s.Load("../etc/passwd")
	assert.Error(t, err)
}

func TestLoad_UnknownFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "PRD", sampleCSV)
	s := New(dir, testEnvFolders)

	_, err := s.Load("nope.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
