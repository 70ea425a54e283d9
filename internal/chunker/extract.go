package chunker

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// maxTableRows caps the row dump in tabular summaries.
const maxTableRows = 100

// extractText decodes plain text as UTF-8.
func extractText(content []byte) []pageContent {
	if !utf8.Valid(content) {
		return []pageContent{{Text: "Error reading text file: content is not valid UTF-8", Page: 1}}
	}
	return []pageContent{{Text: string(content), Page: 1}}
}

// extractPDF extracts text per page using pdfcpu. pdfcpu operates on files,
// so the bytes are staged through a temp directory.
func (p *Processor) extractPDF(content []byte, filename string) []pageContent {
	pages, err := p.pdfPages(content)
	if err != nil {
		p.logger.Warn("pdf extraction failed", zap.String("filename", filename), zap.Error(err))
		// Some "PDFs" are mislabeled text; salvage what we can.
		if salvaged := strings.TrimSpace(string(bytes.ToValidUTF8(content, nil))); len(salvaged) > 10 && utf8.ValidString(salvaged) && !bytes.HasPrefix(content, []byte("%PDF")) {
			return []pageContent{{Text: fmt.Sprintf("PDF extraction failed, but found text content: %s", salvaged), Page: 1}}
		}
		return []pageContent{{
			Text: fmt.Sprintf("Unable to process PDF file %q. Please ensure it's a valid PDF with extractable text content.", filename),
			Page: 1,
		}}
	}

	if len(pages) == 0 {
		return []pageContent{{
			Text: "PDF processed but no text content could be extracted. This may be an image-based PDF or contain non-text elements.",
			Page: 1,
		}}
	}

	return pages
}

// pdfPages runs pdfcpu content extraction and maps the per-page output files
// back into ordered page text. Pages without extractable text are dropped.
func (p *Processor) pdfPages(content []byte) ([]pageContent, error) {
	tempDir, err := os.MkdirTemp("", "ragd-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	tempFile := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(tempFile, content, 0o644); err != nil {
		return nil, fmt.Errorf("writing temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(tempDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	entries, _ := os.ReadDir(outDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(entry.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = string(bytes.ToValidUTF8(data, nil))
	}

	pages := make([]pageContent, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := pageTexts[pageNum]
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, pageContent{Text: text, Page: pageNum})
	}

	return pages, nil
}

// docx XML shapes for word/document.xml.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// extractDocx joins DOCX paragraphs with newlines. A DOCX file is a ZIP
// archive; the text lives in word/document.xml.
func extractDocx(content []byte) []pageContent {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return []pageContent{{Text: fmt.Sprintf("Error extracting DOCX content: %v", err), Page: 1}}
	}

	var documentXML []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return []pageContent{{Text: fmt.Sprintf("Error extracting DOCX content: %v", err), Page: 1}}
		}
		documentXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return []pageContent{{Text: fmt.Sprintf("Error extracting DOCX content: %v", err), Page: 1}}
		}
		break
	}

	if documentXML == nil {
		return []pageContent{{Text: "Error extracting DOCX content: word/document.xml not found", Page: 1}}
	}

	var doc docxDocument
	if err := xml.Unmarshal(documentXML, &doc); err != nil {
		return []pageContent{{Text: fmt.Sprintf("Error extracting DOCX content: %v", err), Page: 1}}
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				b.WriteString(text.Content)
			}
		}
	}

	return []pageContent{{Text: b.String(), Page: 1}}
}

// extractTabular renders CSV and spreadsheet data as a textual table summary:
// shape, column list, and a truncated row dump.
func extractTabular(content []byte, filename, mimeType string) []pageContent {
	var (
		records [][]string
		err     error
	)

	if mimeType == MIMECSV {
		records, err = readCSV(content)
	} else {
		records, err = readXLSX(content)
	}
	if err != nil {
		return []pageContent{{Text: fmt.Sprintf("Error processing spreadsheet: %v", err), Page: 1}}
	}
	if len(records) == 0 {
		return []pageContent{{Text: fmt.Sprintf("Error processing spreadsheet: %s contains no data", filename), Page: 1}}
	}

	header := records[0]
	rows := records[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\n", filename)
	fmt.Fprintf(&b, "Shape: %d rows, %d columns\n\n", len(rows), len(header))
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(header, ", "))
	b.WriteString("Data:\n")
	b.WriteString(strings.Join(header, " | "))
	b.WriteString("\n")

	limit := len(rows)
	if limit > maxTableRows {
		limit = maxTableRows
	}
	for _, row := range rows[:limit] {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	if len(rows) > maxTableRows {
		fmt.Fprintf(&b, "\n... and %d more rows", len(rows)-maxTableRows)
	}

	return []pageContent{{Text: b.String(), Page: 1}}
}

// readCSV parses CSV bytes, tolerating ragged rows.
func readCSV(content []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// XLSX XML shapes. A worksheet cell with t="s" holds an index into the shared
// strings table; anything else holds its value inline.
type xlsxSharedStrings struct {
	Items []struct {
		Text string `xml:"t"`
	} `xml:"si"`
}

type xlsxWorksheet struct {
	SheetData struct {
		Rows []struct {
			Cells []struct {
				Type  string `xml:"t,attr"`
				Value string `xml:"v"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

// readXLSX reads the first worksheet of an XLSX archive.
func readXLSX(content []byte) ([][]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx archive: %w", err)
	}

	var shared xlsxSharedStrings
	if data, err := readZipFile(reader, "xl/sharedStrings.xml"); err == nil {
		_ = xml.Unmarshal(data, &shared)
	}

	sheetData, err := readZipFile(reader, "xl/worksheets/sheet1.xml")
	if err != nil {
		return nil, fmt.Errorf("reading first worksheet: %w", err)
	}

	var sheet xlsxWorksheet
	if err := xml.Unmarshal(sheetData, &sheet); err != nil {
		return nil, fmt.Errorf("parsing worksheet: %w", err)
	}

	records := make([][]string, 0, len(sheet.SheetData.Rows))
	for _, row := range sheet.SheetData.Rows {
		record := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			value := cell.Value
			if cell.Type == "s" {
				if idx, err := strconv.Atoi(cell.Value); err == nil && idx >= 0 && idx < len(shared.Items) {
					value = shared.Items[idx].Text
				}
			}
			record = append(record, value)
		}
		records = append(records, record)
	}

	return records, nil
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
