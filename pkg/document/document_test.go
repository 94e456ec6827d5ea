package document_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "extjob/pkg/document"
	"extjob/pkg/models"
)

type run struct {
	XMLName xml.Name `xml:"run"`
	Log     struct {
		Encoding string `xml:"encoding,attr"`
		Body     string `xml:",chardata"`
	} `xml:"log"`
	Result   string `xml:"result"`
	Duration string `xml:"duration"`
}

func TestHexBinary(t *testing.T) {
	assert.Equal(t, "4142", HexBinary("AB"))
	assert.Equal(t, "0a00ff", HexBinary("\n\x00\xff"))
	assert.Equal(t, "", HexBinary(""))
}

func TestHexBinary_MultiByteCharacters(t *testing.T) {
	assert.Equal(t, "c3a9", HexBinary("é"))
}

func TestBuild_Layout(t *testing.T) {
	doc := Build(models.RunReport{
		Result:         1,
		DurationMillis: models.Int64(250),
		Log:            models.String("AB"),
		Encoding:       models.EncodingHexBinary,
	})

	expected := "<run>\n" +
		"  <log encoding='hexBinary'>4142</log>\n" +
		"  <result>1</result>\n" +
		"  <duration>250</duration>\n" +
		"</run>"
	assert.Equal(t, expected, doc.String())
	assert.Equal(t, len(expected), doc.Len())
	assert.Equal(t, models.EncodingHexBinary, doc.Encoding())
}

func TestBuild_EmptyLog(t *testing.T) {
	doc := Build(models.RunReport{Log: models.String(""), Encoding: models.EncodingHexBinary})

	assert.Contains(t, doc.String(), "<log encoding='hexBinary'></log>")
}

func TestBuild_MissingLogUsesPlaceholder(t *testing.T) {
	doc := Build(models.RunReport{Encoding: models.EncodingRaw})

	assert.Contains(t, doc.String(), "<log encoding='raw'>1</log>")
}

func TestBuild_EncodingIsCaseInsensitive(t *testing.T) {
	doc := Build(models.RunReport{Log: models.String("AB"), Encoding: "HEXBINARY"})

	assert.Contains(t, doc.String(), "<log encoding='HEXBINARY'>4142</log>")
}

func TestBuild_RawPassesLogThrough(t *testing.T) {
	log := "a < b && c"
	for _, enc := range []models.Encoding{models.EncodingRaw, "base64", ""} {
		doc := Build(models.RunReport{Log: models.String(log), Encoding: enc})

		assert.Contains(t, doc.String(), ">"+log+"</log>", "encoding %q", enc)
	}
}

func TestBuild_MissingDurationEmitsEmptyElement(t *testing.T) {
	doc := Build(models.RunReport{Encoding: models.EncodingHexBinary})

	assert.Contains(t, doc.String(), "<duration></duration>")
}

func TestBuild_NegativeResult(t *testing.T) {
	doc := Build(models.RunReport{Result: -1, Encoding: models.EncodingHexBinary})

	assert.Contains(t, doc.String(), "<result>-1</result>")
}

func TestBuild_EscapesEncodingAttribute(t *testing.T) {
	doc := Build(models.RunReport{Log: models.String("x"), Encoding: "a'b"})

	assert.Contains(t, doc.String(), "<log encoding='a&#39;b'>x</log>")
}

func TestBuild_ParsesAsXML(t *testing.T) {
	log := "This test passed!\nYay!\n"
	doc := Build(models.RunReport{
		Result:         0,
		DurationMillis: models.Int64(1000),
		Log:            models.String(log),
		Encoding:       models.EncodingHexBinary,
	})

	var parsed run
	require.NoError(t, xml.Unmarshal(doc.Bytes(), &parsed))

	assert.Equal(t, "hexBinary", parsed.Log.Encoding)
	assert.Equal(t, HexBinary(log), parsed.Log.Body)
	assert.Equal(t, "0", parsed.Result)
	assert.Equal(t, "1000", parsed.Duration)
}

func TestBuild_ElementOrder(t *testing.T) {
	s := Build(models.RunReport{Encoding: models.EncodingHexBinary}).String()

	logAt := strings.Index(s, "<log ")
	resultAt := strings.Index(s, "<result>")
	durationAt := strings.Index(s, "<duration>")
	assert.True(t, logAt < resultAt && resultAt < durationAt, s)
}

func TestDocument_BytesIsACopy(t *testing.T) {
	doc := Build(models.RunReport{Encoding: models.EncodingHexBinary})
	b := doc.Bytes()
	b[0] = 'X'

	assert.True(t, strings.HasPrefix(doc.String(), "<run>"))
}
