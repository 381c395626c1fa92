package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-scraper/internal/model"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return l
}

func testGrant(id int, src model.SourceID, title string) model.Grant {
	g := model.Grant{
		GrantID:       id,
		SourceID:      src,
		CrawledDate:   "2024-01-15 10:00:00",
		LastUpdated:   "2024-01-15 10:00:00",
		Title:         title,
		FundingAgency: "Ontario Trillium Foundation",
		IsActive:      true,
	}
	g.SetAmount(10000)
	g.SetDeadline("2024-02-01")
	return g
}

func readCombinedCSV(t *testing.T, l *Local) []model.Grant {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(l.Dir(), CombinedCSV))
	require.NoError(t, err)
	var grants []model.Grant
	require.NoError(t, csvutil.Unmarshal(data, &grants))
	return grants
}

func readCombinedJSON(t *testing.T, l *Local) []model.Grant {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(l.Dir(), CombinedJSON))
	require.NoError(t, err)
	var grants []model.Grant
	require.NoError(t, json.Unmarshal(data, &grants))
	return grants
}

func TestNewLocal_CreatesSourceDirs(t *testing.T) {
	l := newTestLocal(t)
	for _, dir := range []string{"hc_grant", "kc_grant", "otf_grant"} {
		info, err := os.Stat(filepath.Join(l.Dir(), dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestLocal_WriteRecord_Files(t *testing.T) {
	l := newTestLocal(t)
	g := testGrant(2001, model.SourceOTF, "Seed Grant")
	require.NoError(t, l.WriteRecord(g))

	data, err := os.ReadFile(filepath.Join(l.Dir(), "otf_grant", RecordJSON))
	require.NoError(t, err)
	var rec model.Grant
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, g, rec)
	assert.Contains(t, string(data), "\n    \"grant_id\": 2001")

	data, err = os.ReadFile(filepath.Join(l.Dir(), "otf_grant", RecordCSV))
	require.NoError(t, err)
	var rows []model.Grant
	require.NoError(t, csvutil.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Seed Grant", rows[0].Title)
	require.NotNil(t, rows[0].Deadline)
	assert.Equal(t, "2024-02-01", *rows[0].Deadline)
}

func TestLocal_WriteRecord_Idempotent(t *testing.T) {
	l := newTestLocal(t)

	seed := testGrant(2001, model.SourceOTF, "Seed Grant")
	grow := testGrant(2002, model.SourceOTF, "Grow Grant")
	kindred := testGrant(1001, model.SourceKindred, "Kindred Cares Grant 2024")

	for range 3 {
		require.NoError(t, l.WriteRecord(seed))
		require.NoError(t, l.WriteRecord(grow))
		require.NoError(t, l.WriteRecord(kindred))
	}

	updated := seed
	updated.Title = "Seed Grant (updated)"
	require.NoError(t, l.WriteRecord(updated))

	for name, grants := range map[string][]model.Grant{
		"csv":  readCombinedCSV(t, l),
		"json": readCombinedJSON(t, l),
	} {
		t.Run(name, func(t *testing.T) {
			require.Len(t, grants, 3)
			assert.Equal(t, 2001, grants[0].GrantID)
			assert.Equal(t, "Seed Grant (updated)", grants[0].Title)
			assert.Equal(t, 2002, grants[1].GrantID)
			assert.Equal(t, 1001, grants[2].GrantID)
		})
	}
}

func TestLocal_WriteRecord_UnknownSource(t *testing.T) {
	l := newTestLocal(t)
	err := l.WriteRecord(model.Grant{GrantID: 9, SourceID: 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant 9")
}

func TestLocal_WriteRecord_RecoversCorruptCombined(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"garbage", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLocal(t)
			require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), CombinedJSON), []byte(tt.content), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), CombinedCSV), []byte(tt.content), 0o644))

			require.NoError(t, l.WriteRecord(testGrant(1, model.SourcePHAC, "Healthy Communities")))

			assert.Len(t, readCombinedJSON(t, l), 1)
			assert.Len(t, readCombinedCSV(t, l), 1)
		})
	}
}

func TestLocal_WriteRecord_SingleObjectCombined(t *testing.T) {
	l := newTestLocal(t)
	existing := testGrant(1001, model.SourceKindred, "Kindred Cares Grant")
	data, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), CombinedJSON), data, 0o644))

	require.NoError(t, l.WriteRecord(testGrant(2001, model.SourceOTF, "Seed Grant")))

	grants := readCombinedJSON(t, l)
	require.Len(t, grants, 2)
	assert.Equal(t, 1001, grants[0].GrantID)
	assert.Equal(t, 2001, grants[1].GrantID)
}

func TestLocal_WriteRecord_PartialFailure(t *testing.T) {
	l := newTestLocal(t)
	// A directory where the combined CSV should be makes only that file fail.
	require.NoError(t, os.Mkdir(filepath.Join(l.Dir(), CombinedCSV), 0o755))

	err := l.WriteRecord(testGrant(2001, model.SourceOTF, "Seed Grant"))
	require.Error(t, err)

	assert.FileExists(t, filepath.Join(l.Dir(), "otf_grant", RecordCSV))
	assert.FileExists(t, filepath.Join(l.Dir(), "otf_grant", RecordJSON))
	assert.Len(t, readCombinedJSON(t, l), 1)
}

func TestLocal_WriteSnapshot(t *testing.T) {
	l := newTestLocal(t)
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.WriteSnapshot(Snapshot{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Grants:     []model.Grant{testGrant(1, model.SourcePHAC, "A"), testGrant(2, model.SourcePHAC, "B")},
	}))

	data, err := os.ReadFile(filepath.Join(l.Dir(), SnapshotJSON))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 2, snap.Count)
	assert.Len(t, snap.Grants, 2)
	assert.True(t, snap.FinishedAt.After(snap.StartedAt))
}

func TestLocal_WriteSnapshot_Empty(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, l.WriteSnapshot(Snapshot{RunID: "run-2"}))

	data, err := os.ReadFile(filepath.Join(l.Dir(), SnapshotJSON))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"grants": []`)
	assert.Contains(t, string(data), `"count": 0`)
}

func TestLocal_LoadCombined(t *testing.T) {
	l := newTestLocal(t)

	grants, err := l.LoadCombined()
	require.NoError(t, err)
	assert.Nil(t, grants)

	require.NoError(t, l.WriteRecord(testGrant(1, model.SourcePHAC, "A")))
	require.NoError(t, l.WriteRecord(testGrant(2001, model.SourceOTF, "Seed Grant")))

	grants, err = l.LoadCombined()
	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "Seed Grant", grants[1].Title)
}

func TestLocal_LoadCombined_Corrupt(t *testing.T) {
	l := newTestLocal(t)
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), CombinedJSON), []byte("[{"), 0o644))

	_, err := l.LoadCombined()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink: parse")
}

func TestUpsertByID(t *testing.T) {
	grants := []model.Grant{{GrantID: 1, Title: "a"}, {GrantID: 2, Title: "b"}}

	grants = upsertByID(grants, model.Grant{GrantID: 1, Title: "a2"})
	assert.Equal(t, []model.Grant{{GrantID: 1, Title: "a2"}, {GrantID: 2, Title: "b"}}, grants)

	grants = upsertByID(grants, model.Grant{GrantID: 3, Title: "c"})
	assert.Len(t, grants, 3)
	assert.Equal(t, 3, grants[2].GrantID)
}
