package reservation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Window is the (resource, start, end) triple reported in a conflict.
type Window struct {
	ResourceID string
	Start      time.Time
	End        time.Time
}

// ConflictInfo describes why a reservation could not be stored.
// It is either a ParsedConflict or an UnparsedConflict.
type ConflictInfo interface {
	conflictInfo()
}

// ParsedConflict holds the windows extracted from the database diagnostic.
type ParsedConflict struct {
	New Window
	Old Window
}

// UnparsedConflict keeps the raw diagnostic when it does not match the expected grammar.
type UnparsedConflict struct {
	Raw string
}

func (ParsedConflict) conflictInfo()   {}
func (UnparsedConflict) conflictInfo() {}

// ConflictError is returned by Reserve when the new window overlaps an existing one.
type ConflictError struct {
	Info ConflictInfo
}

func (e *ConflictError) Error() string {
	switch info := e.Info.(type) {
	case ParsedConflict:
		return fmt.Sprintf("%s: %s [%s, %s) overlaps [%s, %s)", ErrConflict.Message,
			info.New.ResourceID,
			info.New.Start.Format(time.RFC3339), info.New.End.Format(time.RFC3339),
			info.Old.Start.Format(time.RFC3339), info.Old.End.Format(time.RFC3339))
	case UnparsedConflict:
		return ErrConflict.Message + ": " + info.Raw
	default:
		return ErrConflict.Message
	}
}

// Unwrap exposes the conflict sentinel so callers can match with errors.Is.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

var (
	conflictDetailRe = regexp.MustCompile(
		`^Key \(([^)]*)\)=\((.*)\) conflicts with existing key \(([^)]*)\)=\((.*)\)\.?$`)
	conflictValueRe = regexp.MustCompile(
		`^(.*), ([\[(])"?([^",]+)"?,"?([^",]+)"?([\])])$`)
)

var pgTimestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07:00:00",
}

// ParseConflict extracts the new and existing windows from the detail of an
// exclusion violation on reservations (resource_id WITH =, timespan WITH &&).
// Anything outside that shape is returned verbatim as UnparsedConflict.
func ParseConflict(detail string) ConflictInfo {
	m := conflictDetailRe.FindStringSubmatch(strings.TrimSpace(detail))
	if m == nil {
		return UnparsedConflict{Raw: detail}
	}
	if !isConflictKey(m[1]) || !isConflictKey(m[3]) {
		return UnparsedConflict{Raw: detail}
	}

	newWindow, err := parseWindow(m[2])
	if err != nil {
		return UnparsedConflict{Raw: detail}
	}
	oldWindow, err := parseWindow(m[4])
	if err != nil {
		return UnparsedConflict{Raw: detail}
	}
	return ParsedConflict{New: newWindow, Old: oldWindow}
}

func isConflictKey(cols string) bool {
	parts := strings.Split(cols, ",")
	if len(parts) != 2 {
		return false
	}
	return strings.TrimSpace(parts[0]) == "resource_id" && strings.TrimSpace(parts[1]) == "timespan"
}

func parseWindow(value string) (Window, error) {
	m := conflictValueRe.FindStringSubmatch(value)
	if m == nil {
		return Window{}, fmt.Errorf("unexpected conflict value %q", value)
	}
	start, err := parsePgTimestamp(m[3])
	if err != nil {
		return Window{}, err
	}
	end, err := parsePgTimestamp(m[4])
	if err != nil {
		return Window{}, err
	}
	return Window{ResourceID: m[1], Start: start, End: end}, nil
}

func parsePgTimestamp(v string) (time.Time, error) {
	var firstErr error
	for _, layout := range pgTimestampLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
