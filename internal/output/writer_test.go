package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sessionengine/internal/summarize"
)

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func samplePersistArtifacts(outputDir string) Artifacts {
	name := "Jane Doe"
	company := "Acme Capital"
	return Artifacts{
		SessionID: "11111111-1111-1111-1111-111111111111",
		Summary:   "a short meeting summary",
		MeetingData: summarize.MeetingData{
			Contacts: []summarize.Contact{{Name: &name, IsDecisionMaker: boolp(true)}},
			Companies: []summarize.Company{{
				Name:               &company,
				CompetitorProducts: []string{"x", "y"},
			}},
			Deals: []summarize.Deal{{TicketSize: strp("$500k")}},
		},
		OutputDir: outputDir,
		StoppedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestPersistWritesSummaryAndData(t *testing.T) {
	dir := t.TempDir()
	w := New()

	paths, err := w.Persist(samplePersistArtifacts(dir))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if paths.SummaryPath == "" || paths.DataPath == "" {
		t.Fatalf("expected non-empty paths, got %+v", paths)
	}

	summaryBytes, err := os.ReadFile(paths.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(summaryBytes), "a short meeting summary") {
		t.Errorf("summary file missing expected content: %q", summaryBytes)
	}

	var data summarize.MeetingData
	dataBytes, err := os.ReadFile(paths.DataPath)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		t.Fatalf("data.json is not valid JSON: %v", err)
	}
	if len(data.Contacts) != 1 || *data.Contacts[0].Name != "Jane Doe" {
		t.Errorf("unexpected contacts in data.json: %+v", data.Contacts)
	}
}

func TestPersistUsesPerMeetingFolderWhenNamesKnown(t *testing.T) {
	dir := t.TempDir()
	w := New()

	paths, err := w.Persist(samplePersistArtifacts(dir))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if filepath.Base(paths.SummaryPath) != "summary.txt" {
		t.Errorf("expected flat summary.txt inside a meeting folder, got %q", paths.SummaryPath)
	}
	if !strings.Contains(filepath.Dir(paths.SummaryPath), "Acme Capital") {
		t.Errorf("expected meeting folder to include company name, got %q", paths.SummaryPath)
	}
}

func TestPersistFallsBackToTimestampNamingWithoutExtraction(t *testing.T) {
	dir := t.TempDir()
	w := New()

	a := samplePersistArtifacts(dir)
	a.MeetingData = summarize.Empty()

	paths, err := w.Persist(a)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(paths.SummaryPath), "summary_") {
		t.Errorf("expected timestamped summary filename, got %q", paths.SummaryPath)
	}
}

func TestPersistAppendsCSVRowWithHeader(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "meetings.csv")
	w := New()

	a := samplePersistArtifacts(dir)
	a.CSVPath = csvPath

	if _, err := w.Persist(a); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "meeting_date" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][3] != "Jane Doe" {
		t.Errorf("unexpected contact_name cell: %v", rows[1])
	}
	if rows[1][17] != "1" {
		t.Errorf("unexpected total_contacts cell: %v", rows[1])
	}
}

func TestPersistAppendsSecondRowWithoutDuplicatingHeader(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "meetings.csv")
	w := New()

	for i := 0; i < 2; i++ {
		a := samplePersistArtifacts(dir)
		a.CSVPath = csvPath
		if _, err := w.Persist(a); err != nil {
			t.Fatalf("Persist #%d: %v", i, err)
		}
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
}

func TestExpandHomeLeavesNonTildePathsAlone(t *testing.T) {
	got, err := expandHome("/tmp/foo")
	if err != nil {
		t.Fatalf("expandHome: %v", err)
	}
	if got != "/tmp/foo" {
		t.Errorf("got %q want %q", got, "/tmp/foo")
	}
}
