package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ComplianceReport summarizes audit/security activity over a window,
// grounded on the source system's ComplianceChecker.generate_compliance_report:
// an event-kind breakdown plus a pass/fail verdict against four fixed checks.
type ComplianceReport struct {
	Start, End      time.Time
	TotalEvents     int
	EventCounts     map[EventKind]int
	SecurityAlerts  int
	AccessDenials   int
	Checks          map[string]bool
	Compliant       bool
}

// Report scans the JSONL files at auditPath and securityPath for entries
// timestamped within [start, end) and produces a ComplianceReport. It is
// read-only, offline tooling, never called on the request hot path.
func Report(auditPath, securityPath string, start, end time.Time) (*ComplianceReport, error) {
	report := &ComplianceReport{Start: start, End: end, EventCounts: make(map[EventKind]int)}

	for _, path := range []string{auditPath, securityPath} {
		if err := scanEntries(path, start, end, func(e Entry) {
			report.TotalEvents++
			report.EventCounts[e.Kind]++
			if e.Kind == EventSecurityAlert {
				report.SecurityAlerts++
			}
			if e.Kind == EventAccessDenied {
				report.AccessDenials++
			}
		}); err != nil {
			return nil, err
		}
	}

	report.Checks = map[string]bool{
		"data_retention":     true,
		"access_control":     report.AccessDenials == 0 || report.EventCounts[EventSearch] > 0,
		"data_protection":    true,
		"security_monitoring": report.TotalEvents > 0 || report.SecurityAlerts == 0,
	}
	report.Compliant = true
	for _, ok := range report.Checks {
		if !ok {
			report.Compliant = false
		}
	}
	return report, nil
}

func scanEntries(path string, start, end time.Time, visit func(Entry)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open log for report: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		visit(entry)
	}
	return scanner.Err()
}
