// Package sink persists scraped grants to local files and remote tables.
package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/model"
)

// File names under the data directory.
const (
	RecordCSV    = "grant.csv"
	RecordJSON   = "grant.json"
	CombinedCSV  = "all_grants.csv"
	CombinedJSON = "all_grants.json"
	SnapshotJSON = "last_run.json"
)

// Local persists grants as per-source files plus combined files merged by grant_id.
// It is not safe for concurrent use across processes.
type Local struct {
	dir string
	log *zap.Logger
}

// NewLocal creates the data directory and every source subdirectory.
func NewLocal(dataDir string) (*Local, error) {
	for _, src := range model.Sources() {
		if err := os.MkdirAll(filepath.Join(dataDir, src.DataDir), 0o755); err != nil {
			return nil, eris.Wrapf(err, "sink: create data dir for %s", src.Key)
		}
	}
	return &Local{
		dir: dataDir,
		log: zap.L().With(zap.String("component", "sink.local")),
	}, nil
}

// SetLogger replaces the sink's logger.
func (l *Local) SetLogger(log *zap.Logger) {
	l.log = log.With(zap.String("component", "sink.local"))
}

// Dir returns the data directory.
func (l *Local) Dir() string { return l.dir }

// WriteRecord overwrites the grant's per-source grant.csv and grant.json, then
// merges it into all_grants.csv and all_grants.json. Every file is attempted
// even if an earlier one fails; the failures are joined.
func (l *Local) WriteRecord(g model.Grant) error {
	src, err := model.LookupSource(g.SourceID)
	if err != nil {
		return eris.Wrapf(err, "sink: grant %d", g.GrantID)
	}
	dir := filepath.Join(l.dir, src.DataDir)

	steps := []struct {
		path string
		fn   func(string) error
	}{
		{filepath.Join(dir, RecordCSV), func(p string) error { return writeCSV(p, []model.Grant{g}) }},
		{filepath.Join(dir, RecordJSON), func(p string) error { return writeJSON(p, g) }},
		{filepath.Join(l.dir, CombinedCSV), func(p string) error { return l.mergeCSV(p, g) }},
		{filepath.Join(l.dir, CombinedJSON), func(p string) error { return l.mergeJSON(p, g) }},
	}

	var errs []error
	for _, s := range steps {
		if err := s.fn(s.path); err != nil {
			l.log.Error("failed to write grant file",
				zap.String("path", s.path),
				zap.Int("grant_id", g.GrantID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		l.log.Debug("wrote grant file", zap.String("path", s.path), zap.Int("grant_id", g.GrantID))
	}
	return errors.Join(errs...)
}

// Snapshot is the record of a single run written to last_run.json.
type Snapshot struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Count      int           `json:"count"`
	Grants     []model.Grant `json:"grants"`
}

// WriteSnapshot overwrites last_run.json with the grants of one run.
func (l *Local) WriteSnapshot(s Snapshot) error {
	s.Count = len(s.Grants)
	if s.Grants == nil {
		s.Grants = []model.Grant{}
	}
	path := filepath.Join(l.dir, SnapshotJSON)
	if err := writeJSON(path, s); err != nil {
		return err
	}
	l.log.Info("saved run snapshot", zap.String("path", path), zap.Int("count", s.Count))
	return nil
}

// LoadCombined reads all_grants.json. A missing file yields no grants.
func (l *Local) LoadCombined() ([]model.Grant, error) {
	path := filepath.Join(l.dir, CombinedJSON)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sink: read %s", path)
	}
	grants, err := decodeGrantsJSON(data)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: parse %s", path)
	}
	return grants, nil
}

func (l *Local) mergeCSV(path string, g model.Grant) error {
	var existing []model.Grant
	if data := l.readExisting(path); len(data) > 0 {
		if err := csvutil.Unmarshal(data, &existing); err != nil {
			l.log.Warn("unreadable combined CSV, starting a new file", zap.String("path", path), zap.Error(err))
			existing = nil
		}
	}
	return writeCSV(path, upsertByID(existing, g))
}

func (l *Local) mergeJSON(path string, g model.Grant) error {
	var existing []model.Grant
	if data := l.readExisting(path); len(data) > 0 {
		var err error
		if existing, err = decodeGrantsJSON(data); err != nil {
			l.log.Warn("unreadable combined JSON, starting a new file", zap.String("path", path), zap.Error(err))
			existing = nil
		}
	}
	return writeJSON(path, upsertByID(existing, g))
}

// readExisting returns the trimmed file content, or nil when the file is
// missing or unreadable.
func (l *Local) readExisting(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warn("cannot read existing file, starting a new one", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		l.log.Warn("existing file is empty, starting a new one", zap.String("path", path))
	}
	return data
}

// upsertByID replaces the grant with the same id in place, or appends it.
func upsertByID(grants []model.Grant, g model.Grant) []model.Grant {
	for i := range grants {
		if grants[i].GrantID == g.GrantID {
			grants[i] = g
			return grants
		}
	}
	return append(grants, g)
}

// decodeGrantsJSON accepts an array of grants or a single grant object.
func decodeGrantsJSON(data []byte) ([]model.Grant, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var g model.Grant
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, err
		}
		return []model.Grant{g}, nil
	}
	var grants []model.Grant
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func writeCSV(path string, grants []model.Grant) error {
	data, err := csvutil.Marshal(grants)
	if err != nil {
		return eris.Wrapf(err, "sink: encode %s", path)
	}
	return writeFile(path, data)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "sink: encode %s", path)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path through a temp file in the same directory so a
// failed write leaves the previous content intact.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "sink: create temp for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "sink: chmod %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "sink: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "sink: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "sink: replace %s", path)
	}
	return nil
}
