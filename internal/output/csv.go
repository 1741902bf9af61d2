package output

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"sessionengine/internal/summarize"
)

// appendCSVRow appends one row to meetings.csv, writing the header
// first if the file is new. The in-process csvMu prevents a
// header-write race between goroutines in this process; flockAppend
// (platform-specific) holds an OS-level advisory lock around the
// actual append so multiple engine processes sharing a CSV path don't
// interleave rows either.
func (w *Writer) appendCSVRow(path string, a Artifacts, timestampFile string) error {
	w.csvMu.Lock()
	defer w.csvMu.Unlock()

	return flockAppend(path, func(f *os.File) error {
		info, err := f.Stat()
		if err != nil {
			return err
		}
		writer := csv.NewWriter(f)

		if info.Size() == 0 {
			if err := writer.Write(csvHeader); err != nil {
				return err
			}
		}

		row := buildCSVRow(a, timestampFile)
		if err := writer.Write(row); err != nil {
			return err
		}
		writer.Flush()
		return writer.Error()
	})
}

func buildCSVRow(a Artifacts, timestampFile string) []string {
	d := a.MeetingData

	var contact summarize.Contact
	if len(d.Contacts) > 0 {
		contact = d.Contacts[0]
	}
	var company summarize.Company
	if len(d.Companies) > 0 {
		company = d.Companies[0]
	}
	var deal summarize.Deal
	if len(d.Deals) > 0 {
		deal = d.Deals[0]
	}

	return []string{
		a.StoppedAt.Format("2006-01-02"),
		a.StoppedAt.Format("15:04:05"),
		timestampFile,
		strPtr(contact.Name),
		strPtr(contact.Role),
		strPtr(contact.Location),
		boolPtrStr(contact.IsDecisionMaker),
		strPtr(contact.TenureDuration),
		strPtr(company.Name),
		strPtr(company.AUM),
		intPtrStr(company.ICPClassification),
		strPtr(company.Location),
		boolPtrStr(company.IsClient),
		strings.Join(company.CompetitorProducts, ","),
		strings.Join(company.StrategiesOfInterest, ","),
		strPtr(deal.TicketSize),
		strings.Join(deal.ProductsOfInterest, ","),
		strconv.Itoa(len(d.Contacts)),
		strconv.Itoa(len(d.Companies)),
		strconv.Itoa(len(d.Deals)),
	}
}

func strPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolPtrStr(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "true"
	}
	return "false"
}

func intPtrStr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
