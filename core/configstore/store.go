package configstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ccintegration/SAP-IS-CICD/core/models"
)

// csvHeader is the fixed column layout of saved configuration files.
var csvHeader = []string{
	"iFlow_ID", "iFlow_Name", "iFlow_Version",
	"Parameter_Key", "Parameter_Value", "Parameter_Type", "Saved_At",
}

const baseFileName = "iflow_configuration.csv"

// Store reads and writes per-environment configuration parameter files.
// Files are pipe-delimited CSV, one folder per environment.
type Store struct {
	dir        string
	envFolders map[string]string
}

// New creates a store rooted at dir. envFolders maps environment names to
// folder names; unmapped environments use the uppercased environment name.
func New(dir string, envFolders map[string]string) *Store {
	return &Store{dir: dir, envFolders: envFolders}
}

func (s *Store) folderFor(env string) string {
	if folder, ok := s.envFolders[env]; ok {
		return folder
	}
	return strings.ToUpper(env)
}

// Resolve returns the saved parameter rows for one artifact version in the
// given environment. A missing file or no matching rows yields an empty
// slice, not an error: "nothing to configure" is a legitimate state.
func (s *Store) Resolve(iflowID, version, env string) ([]models.ConfigParameter, error) {
	path := filepath.Join(s.dir, s.folderFor(env), baseFileName)

	rows, err := s.readFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var matched []models.ConfigParameter
	for _, row := range rows {
		if row.IFlowID == iflowID && row.Version == version {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func (s *Store) readFile(path string) ([]models.ConfigParameter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '|'
	// Rows with a deviating column count are skipped below instead of
	// failing the whole file.
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []models.ConfigParameter
	for _, rec := range records[1:] { // skip header
		if len(rec) < len(csvHeader) {
			continue
		}
		savedAt, _ := time.Parse(time.RFC3339, rec[6])
		rows = append(rows, models.ConfigParameter{
			IFlowID:   rec[0],
			IFlowName: rec[1],
			Version:   rec[2],
			Key:       rec[3],
			Value:     rec[4],
			Type:      rec[5],
			SavedAt:   savedAt,
		})
	}
	return rows, nil
}

// IFlowConfiguration is the save-request payload for one artifact.
type IFlowConfiguration struct {
	IFlowID        string            `json:"iflowId"`
	IFlowName      string            `json:"iflowName"`
	Version        string            `json:"version"`
	Configurations map[string]string `json:"configurations"`
}

// SaveResult describes what a Save call wrote.
type SaveResult struct {
	Files           []string `json:"files"`
	TotalParameters int      `json:"total_parameters"`
	TotalIFlows     int      `json:"total_iflows"`
	Environment     string   `json:"environment"`
}

// Save persists the configurations of a set of artifacts to the environment
// folder, writing both the generic file and the environment-suffixed copy.
func (s *Store) Save(env string, iflows []IFlowConfiguration) (*SaveResult, error) {
	folder := strings.ToUpper(env)
	envDir := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(envDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating environment folder: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var records [][]string
	for _, iflow := range iflows {
		keys := make([]string, 0, len(iflow.Configurations))
		for k := range iflow.Configurations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			records = append(records, []string{
				iflow.IFlowID, iflow.IFlowName, iflow.Version,
				key, iflow.Configurations[key], "xsd:string", now,
			})
		}
	}

	paths := []string{
		filepath.Join(envDir, baseFileName),
		filepath.Join(envDir, fmt.Sprintf("iflow_configuration_%s.csv", folder)),
	}
	for _, path := range paths {
		if err := writeCSV(path, records); err != nil {
			return nil, err
		}
	}

	log.Info().Int("parameters", len(records)).Str("environment", env).Msg("configuration parameters saved")
	return &SaveResult{
		Files:           paths,
		TotalParameters: len(records),
		TotalIFlows:     len(iflows),
		Environment:     env,
	}, nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '|'
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// FileInfo describes one saved configuration file.
type FileInfo struct {
	Name     string    `json:"filename"`
	Path     string    `json:"filepath"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListFiles returns every saved configuration file across all environment
// folders, newest first.
func (s *Store) ListFiles() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Name:     d.Name(),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Modified.After(files[j].Modified) })
	return files, nil
}

// Load reads one saved configuration file by name, searching every
// environment folder. The name must be a bare file name.
func (s *Store) Load(filename string) ([]models.ConfigParameter, error) {
	if filename != filepath.Base(filename) {
		return nil, fmt.Errorf("invalid file name %q", filename)
	}

	files, err := s.ListFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == filename {
			return s.readFile(f.Path)
		}
	}
	return nil, os.ErrNotExist
}
