package document

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"strconv"

	"extjob/pkg/models"
)

// Document is a rendered <run> payload. It is immutable once built.
type Document struct {
	body     []byte
	encoding models.Encoding
}

// Build renders report into the external-job XML schema. Element order is
// fixed: log, result, duration.
//
// The log body is not escaped. With hexBinary that is safe; with any other
// encoding a log containing '<' or '&' produces a malformed document, which
// is what the receiving service has always been sent.
//
// Build does not default the encoding; callers use Encoding.OrDefault.
func Build(report models.RunReport) Document {
	var w writer

	w.open("run")
	w.raw("\n  ")
	w.openLog(report.Encoding)
	w.raw(encodeLog(report.LogText(), report.Encoding))
	w.close("log")
	w.raw("\n  ")
	w.element("result", strconv.Itoa(report.Result))
	w.raw("\n  ")
	w.element("duration", formatDuration(report.DurationMillis))
	w.raw("\n")
	w.close("run")

	return Document{body: w.buf.Bytes(), encoding: report.Encoding}
}

// HexBinary encodes s byte by byte as lowercase hex with no separators.
func HexBinary(s string) string {
	return hex.EncodeToString([]byte(s))
}

func encodeLog(log string, enc models.Encoding) string {
	if enc.IsHexBinary() {
		return HexBinary(log)
	}
	return log
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return ""
	}
	return strconv.FormatInt(*ms, 10)
}

func (d Document) String() string { return string(d.body) }

// Bytes returns a copy of the rendered document.
func (d Document) Bytes() []byte {
	return bytes.Clone(d.body)
}

func (d Document) Len() int { return len(d.body) }

func (d Document) Encoding() models.Encoding { return d.encoding }

// writer emits the handful of tokens the schema needs. The attribute uses
// single quotes to match what the service has historically received.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) open(name string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

func (w *writer) openLog(enc models.Encoding) {
	w.buf.WriteString("<log encoding='")
	w.escape(string(enc))
	w.buf.WriteString("'>")
}

func (w *writer) close(name string) {
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

func (w *writer) element(name, text string) {
	w.open(name)
	w.escape(text)
	w.close(name)
}

func (w *writer) raw(s string) {
	w.buf.WriteString(s)
}

func (w *writer) escape(s string) {
	// bytes.Buffer writes never fail.
	_ = xml.EscapeText(&w.buf, []byte(s))
}
