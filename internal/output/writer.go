// Package output implements writing summary.txt, data.json, and
// appending meetings.csv, with atomic writes and CSV append-locking.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sessionengine/internal/engineerr"
	"sessionengine/internal/summarize"
)

// Artifacts is everything Persist needs for one session's terminal
// output.
type Artifacts struct {
	SessionID   string
	Summary     string
	MeetingData summarize.MeetingData
	CSVPath     string
	AppendCSV   bool
	OutputDir   string
	StoppedAt   time.Time
}

// Paths are the artifact locations reported back to the HTTP caller.
type Paths struct {
	SummaryPath string
	DataPath    string
	CSVPath     string
}

// Writer persists session artifacts. A single process-wide Writer is
// shared across sessions because the CSV append path is a shared
// resource guarded by csvMu plus an OS-level advisory lock.
type Writer struct {
	csvMu sync.Mutex
}

func New() *Writer {
	return &Writer{}
}

// csvHeader is the fixed column order for meetings.csv.
var csvHeader = []string{
	"meeting_date", "meeting_time", "timestamp_file",
	"contact_name", "contact_role", "contact_location", "contact_is_decision_maker", "contact_tenure",
	"company_name", "company_aum", "company_icp", "company_location", "company_is_client",
	"company_competitor_products", "company_strategies_of_interest",
	"deal_ticket_size", "deal_products_of_interest",
	"total_contacts", "total_companies", "total_deals",
}

// Persist expands ~, creates directories, writes summary.txt and
// data.json atomically, and appends one row to meetings.csv under an
// exclusive lock. Paths already written are returned even if a later
// step fails.
func (w *Writer) Persist(a Artifacts) (Paths, error) {
	var paths Paths

	outputDir, err := expandHome(a.OutputDir)
	if err != nil {
		return paths, engineerr.New(engineerr.OutputWriteFailure, err.Error())
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("mkdir output_dir: %v", err))
	}

	base := meetingFolderName(a.MeetingData, a.StoppedAt)
	var dir string
	if base != "" {
		dir = filepath.Join(outputDir, base)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("mkdir meeting folder: %v", err))
		}
	} else {
		dir = outputDir
	}

	ts := a.StoppedAt.Format("20060102_150405")
	summaryName := "summary.txt"
	dataName := "data.json"
	if base == "" {
		summaryName = fmt.Sprintf("summary_%s.txt", ts)
		dataName = fmt.Sprintf("data_%s.json", ts)
	}

	summaryPath := filepath.Join(dir, summaryName)
	if err := atomicWriteFile(summaryPath, []byte(strings.TrimRight(a.Summary, "\n")+"\n")); err != nil {
		return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("write summary.txt: %v", err))
	}
	paths.SummaryPath = summaryPath

	dataJSON, err := json.MarshalIndent(a.MeetingData, "", "  ")
	if err != nil {
		return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("marshal data.json: %v", err))
	}
	dataPath := filepath.Join(dir, dataName)
	if err := atomicWriteFile(dataPath, dataJSON); err != nil {
		return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("write data.json: %v", err))
	}
	paths.DataPath = dataPath

	if a.CSVPath != "" {
		csvPath, err := expandHome(a.CSVPath)
		if err != nil {
			return paths, engineerr.New(engineerr.OutputWriteFailure, err.Error())
		}
		if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
			return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("mkdir csv dir: %v", err))
		}
		if err := w.appendCSVRow(csvPath, a, ts); err != nil {
			return paths, engineerr.New(engineerr.OutputWriteFailure, fmt.Sprintf("append csv: %v", err))
		}
		paths.CSVPath = csvPath
	}

	return paths, nil
}

// meetingFolderName derives a per-meeting subfolder name from
// MeetingData ("YYYY-MM-DD Company - Contact"), falling back to
// timestamp-only naming when extraction produced nothing usable.
func meetingFolderName(data summarize.MeetingData, stoppedAt time.Time) string {
	var company, contact string
	if len(data.Companies) > 0 && data.Companies[0].Name != nil && *data.Companies[0].Name != "" {
		company = *data.Companies[0].Name
	}
	if len(data.Contacts) > 0 && data.Contacts[0].Name != nil && *data.Contacts[0].Name != "" {
		contact = *data.Contacts[0].Name
	}
	if company == "" && contact == "" {
		return ""
	}
	date := stoppedAt.Format("2006-01-02")
	switch {
	case company != "" && contact != "":
		return sanitizeFolderName(fmt.Sprintf("%s %s - %s", date, company, contact))
	case company != "":
		return sanitizeFolderName(fmt.Sprintf("%s %s", date, company))
	default:
		return sanitizeFolderName(fmt.Sprintf("%s %s", date, contact))
	}
}

func sanitizeFolderName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "-", "\"", "-", "<", "-", ">", "-", "|", "-")
	return replacer.Replace(name)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// atomicWriteFile writes to a temp file in the same directory and
// renames over the destination, so readers never observe a partial
// write.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
