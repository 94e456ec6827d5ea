package models

import "strings"

// Encoding names how the console log is embedded in the result document.
type Encoding string

const (
	// EncodingHexBinary renders each log byte as two lowercase hex digits.
	EncodingHexBinary Encoding = "hexBinary"
	// EncodingRaw passes the log through untouched.
	EncodingRaw Encoding = "raw"
)

// DefaultLog is sent when a run carries no log at all. The receiving
// service has always seen this token for log-less runs.
const DefaultLog = "1"

// IsHexBinary reports whether e selects hex-binary encoding (case-insensitive).
func (e Encoding) IsHexBinary() bool {
	return strings.EqualFold(string(e), string(EncodingHexBinary))
}

// OrDefault returns e, or EncodingHexBinary when e is empty.
func (e Encoding) OrDefault() Encoding {
	if e == "" {
		return EncodingHexBinary
	}
	return e
}

// RunReport is the outcome of a single job run as seen by the CI server.
type RunReport struct {
	// Result is the exit code: 0 is success, anything else is failure.
	Result int
	// DurationMillis is optional; nil renders an empty <duration/> body.
	DurationMillis *int64
	// Log is optional; nil means DefaultLog.
	Log      *string
	Encoding Encoding
}

// Succeeded reports whether the run passed.
func (r RunReport) Succeeded() bool {
	return r.Result == 0
}

// LogText returns the log to embed, substituting DefaultLog when absent.
func (r RunReport) LogText() string {
	if r.Log == nil {
		return DefaultLog
	}
	return *r.Log
}

// Int64 returns a pointer to v, for filling DurationMillis.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v, for filling Log.
func String(v string) *string { return &v }
