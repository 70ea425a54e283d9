package chunker

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTabular_CSV(t *testing.T) {
	csvData := "name,age\nalice,30\nbob,25\n"
	pages := extractTabular([]byte(csvData), "people.csv", MIMECSV)
	require.Len(t, pages, 1)

	text := pages[0].Text
	assert.Contains(t, text, "File: people.csv")
	assert.Contains(t, text, "Shape: 2 rows, 2 columns")
	assert.Contains(t, text, "Columns: name, age")
	assert.Contains(t, text, "alice | 30")
	assert.NotContains(t, text, "more rows")
}

func TestExtractTabular_CSVTruncatesLargeTables(t *testing.T) {
	var b strings.Builder
	b.WriteString("id\n")
	for i := 0; i < 150; i++ {
		b.WriteString("row\n")
	}

	pages := extractTabular([]byte(b.String()), "big.csv", MIMECSV)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Shape: 150 rows, 1 columns")
	assert.Contains(t, pages[0].Text, "... and 50 more rows")
}

func TestExtractTabular_MalformedSpreadsheet(t *testing.T) {
	pages := extractTabular([]byte("not a zip"), "data.xlsx", MIMEXLSX)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Error processing spreadsheet")
}

// buildDocx assembles a minimal DOCX archive with the given paragraphs.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, para := range paragraphs {
		b.WriteString(`<w:p><w:r><w:t>` + para + `</w:t></w:r></w:p>`)
	}
	b.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fw.Write([]byte(b.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	content := buildDocx(t, "First paragraph.", "Second paragraph.")

	pages := extractDocx(content)
	require.Len(t, pages, 1)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", pages[0].Text)
}

func TestExtractDocx_Malformed(t *testing.T) {
	pages := extractDocx([]byte("not a docx"))
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Error extracting DOCX content")
}

func TestProcess_DocxEndToEnd(t *testing.T) {
	p := newRuneProcessor(WithChunkSize(500), WithOverlap(50))
	content := buildDocx(t, "The quarterly report covers revenue and churn.")

	chunks := p.Process(context.Background(), content, "report.docx", MIMEDocx, "acme")
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "quarterly report")
	assert.Equal(t, "acme_report.docx_1_0", chunks[0].ChunkID)
}

// buildXLSX assembles a minimal single-sheet XLSX archive.
func buildXLSX(t *testing.T) []byte {
	t.Helper()

	shared := `<?xml version="1.0"?><sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>city</t></si><si><t>pop</t></si><si><t>oslo</t></si></sst>`
	sheet := `<?xml version="1.0"?><worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
		`<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c></row>` +
		`<row><c t="s"><v>2</v></c><c><v>709000</v></c></row>` +
		`</sheetData></worksheet>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string]string{
		"xl/sharedStrings.xml":     shared,
		"xl/worksheets/sheet1.xml": sheet,
	} {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestExtractTabular_XLSX(t *testing.T) {
	pages := extractTabular(buildXLSX(t), "cities.xlsx", MIMEXLSX)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "Columns: city, pop")
	assert.Contains(t, pages[0].Text, "oslo | 709000")
}
