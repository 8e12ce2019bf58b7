package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/jikan/internal/models"
	"github.com/xuri/excelize/v2"
)

// meterWorkbook returns .xlsx bytes with a typical meter export layout on Sheet1.
func meterWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Short name")
	f.SetCellValue("Sheet1", "B1", "Description")
	f.SetCellValue("Sheet1", "C1", "1/1/2024, 00:00")
	f.SetCellValue("Sheet1", "D1", "1/1/2024, 01:00")
	f.SetCellValue("Sheet1", "A2", "A")
	f.SetCellValue("Sheet1", "B2", "Feeder A")
	f.SetCellValue("Sheet1", "C2", 5)
	f.SetCellStr("Sheet1", "D2", "3")
	f.SetCellValue("Sheet1", "A3", " B ")
	f.SetCellValue("Sheet1", "C3", "N/A")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestTable_excel(t *testing.T) {
	e := NewExtractor()
	tbl, err := e.Table("meters.xlsx", meterWorkbook(t))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(tbl.Header) != 4 || tbl.Header[0] != "Short name" || tbl.Header[3] != "1/1/2024, 01:00" {
		t.Errorf("header = %q", tbl.Header)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if c := tbl.Cell(0, 2); c.Kind != models.CellNumber || c.Num != 5 {
		t.Errorf("C2 = %+v, want number 5", c)
	}
	if c := tbl.Cell(0, 3); c.Kind != models.CellText || c.Text != "3" {
		t.Errorf("D2 = %+v, want text \"3\"", c)
	}
	if c := tbl.Cell(1, 2); c.Kind != models.CellText || c.Text != "N/A" {
		t.Errorf("C3 = %+v, want text N/A", c)
	}
	if !tbl.Cell(1, 3).IsMissing() {
		t.Errorf("D3 should be missing, got %+v", tbl.Cell(1, 3))
	}
	if tbl.Name != "meters.xlsx" {
		t.Errorf("name = %q", tbl.Name)
	}
}

func TestTable_excelNamedSheet(t *testing.T) {
	f := excelize.NewFile()
	f.NewSheet("Readings")
	f.SetCellValue("Readings", "A1", "Short name")
	f.SetCellValue("Readings", "A2", "X")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	f.Close()

	tbl, err := NewExtractor(WithSheet("Readings")).Table("book.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Cell(0, 0).String() != "X" {
		t.Errorf("rows = %+v", tbl.Rows)
	}

	_, err = NewExtractor(WithSheet("Missing")).Table("book.xlsx", buf.Bytes())
	if !errors.Is(err, models.ErrSourceUnreadable) {
		t.Errorf("missing sheet: got %v, want ErrSourceUnreadable", err)
	}
}

func TestTable_corruptExcel(t *testing.T) {
	_, err := NewExtractor().Table("broken.xlsx", []byte("not a workbook"))
	if !errors.Is(err, models.ErrSourceUnreadable) {
		t.Errorf("got %v, want ErrSourceUnreadable", err)
	}
}

func TestTable_unsupportedExtension(t *testing.T) {
	_, err := NewExtractor().Table("notes.txt", []byte("hello"))
	if !errors.Is(err, models.ErrSourceUnreadable) {
		t.Errorf("got %v, want ErrSourceUnreadable", err)
	}
}

func TestTable_csv(t *testing.T) {
	content := "\xEF\xBB\xBFShort name,Description,\"1/1/2024, 00:00\",\"1/1/2024, 01:00\"\nA,Feeder,5,\nB,,x,2.5\n"
	tbl, err := NewExtractor().Table("meters.csv", []byte(content))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if tbl.Header[0] != "Short name" || tbl.Header[2] != "1/1/2024, 00:00" {
		t.Errorf("header = %q", tbl.Header)
	}
	if v, ok := tbl.Cell(0, 2).Float(); !ok || v != 5 {
		t.Errorf("A 00:00 = %v (%v)", v, ok)
	}
	if !tbl.Cell(0, 3).IsMissing() {
		t.Errorf("empty field should be missing")
	}
	if _, ok := tbl.Cell(1, 2).Float(); ok {
		t.Errorf("x should not parse")
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{`Short name,Desc,"1/1/2024, 00:00"`, ','},
		{`Short name;Desc;1/1/2024, 00:00;1/1/2024, 01:00`, ';'},
		{"Short name\tDesc\t1/1/2024, 00:00", '\t'},
		{`single`, ','},
	}
	for _, tt := range tests {
		if got := sniffDelimiter([]byte(tt.line + "\nA;B")); got != tt.want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

// minimalOds returns minimal .ods zip bytes with the given content.xml.
func minimalOds(contentXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

const odsMeters = `<office:document-content><office:body><office:spreadsheet>
<table:table table:name="Other"><table:table-row><table:table-cell office:value-type="string"><text:p>ignored</text:p></table:table-cell></table:table-row></table:table>
<table:table table:name="Readings">
<table:table-row>
<table:table-cell office:value-type="string"><text:p>Short name</text:p></table:table-cell>
<table:table-cell/>
<table:table-cell office:value-type="string"><text:p>1/1/2024, 00:00</text:p></table:table-cell>
<table:table-cell table:number-columns-repeated="1020"/>
</table:table-row>
<table:table-row>
<table:table-cell office:value-type="string"><text:p>A</text:p></table:table-cell>
<table:table-cell table:number-columns-repeated="1"/>
<table:table-cell office:value-type="float" office:value="4.25"><text:p>4.3</text:p></table:table-cell>
</table:table-row>
<table:table-row table:number-rows-repeated="1048000"><table:table-cell table:number-columns-repeated="1024"/></table:table-row>
</table:table>
</office:spreadsheet></office:body></office:document-content>`

func TestTable_ods(t *testing.T) {
	tbl, err := NewExtractor(WithSheet("Readings")).Table("meters.ods", minimalOds(odsMeters))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(tbl.Header) != 3 || tbl.Header[0] != "Short name" || tbl.Header[1] != "" || tbl.Header[2] != "1/1/2024, 00:00" {
		t.Errorf("header = %q", tbl.Header)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tbl.Rows))
	}
	if c := tbl.Cell(0, 2); c.Kind != models.CellNumber || c.Num != 4.25 {
		t.Errorf("reading = %+v, want number 4.25", c)
	}
}

func TestTable_odsFirstSheetByDefault(t *testing.T) {
	tbl, err := NewExtractor().Table("meters.ods", minimalOds(odsMeters))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if tbl.Header[0] != "ignored" {
		t.Errorf("header = %q", tbl.Header)
	}
}

func TestTable_odsMissingContent(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("meta.xml")
	_ = w.Close()
	_, err := NewExtractor().Table("empty.ods", buf.Bytes())
	if !errors.Is(err, models.ErrSourceUnreadable) {
		t.Errorf("got %v, want ErrSourceUnreadable", err)
	}
}

func TestLoadBytes_archive(t *testing.T) {
	xlsx := meterWorkbook(t)
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"march/b.xlsx", "__MACOSX/march/._b.xlsx", "readme.txt", "march/a.csv", ".hidden.csv", "march/"} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		switch filepath.Ext(name) {
		case ".xlsx":
			_, _ = fw.Write(xlsx)
		case ".csv":
			_, _ = fw.Write([]byte("Short name,x,\"1/1/2024, 00:00\"\nA,,1\n"))
		default:
			_, _ = fw.Write([]byte("ignored"))
		}
	}
	_ = w.Close()

	sources := NewExtractor().LoadBytes("upload.zip", buf.Bytes())
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2: %+v", len(sources), sources)
	}
	if sources[0].Name != "upload.zip/march/b.xlsx" || sources[1].Name != "upload.zip/march/a.csv" {
		t.Errorf("names = %q, %q", sources[0].Name, sources[1].Name)
	}
	for _, s := range sources {
		if s.Err != nil || s.Table == nil {
			t.Errorf("%s: err=%v", s.Name, s.Err)
		}
	}
}

func TestLoadBytes_archiveMemberFailureIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	bad, _ := w.Create("bad.xlsx")
	_, _ = bad.Write([]byte("garbage"))
	good, _ := w.Create("good.csv")
	_, _ = good.Write([]byte("Short name,x\nA,1\n"))
	_ = w.Close()

	sources := NewExtractor().LoadBytes("upload.zip", buf.Bytes())
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	if !errors.Is(sources[0].Err, models.ErrSourceUnreadable) {
		t.Errorf("bad member: got %v", sources[0].Err)
	}
	if sources[1].Err != nil {
		t.Errorf("good member: got %v", sources[1].Err)
	}
}

func TestLoadBytes_archiveWithoutSpreadsheets(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("notes.txt")
	_, _ = fw.Write([]byte("nothing"))
	_ = w.Close()
	sources := NewExtractor().LoadBytes("upload.zip", buf.Bytes())
	if len(sources) != 1 || !errors.Is(sources[0].Err, models.ErrSourceUnreadable) {
		t.Errorf("got %+v", sources)
	}
}

func TestLoadBytes_archiveMemberTooLarge(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("big.csv")
	_, _ = fw.Write(bytes.Repeat([]byte("a"), 64))
	_ = w.Close()
	sources := NewExtractor(WithMaxMemberBytes(16)).LoadBytes("upload.zip", buf.Bytes())
	if len(sources) != 1 || sources[0].Err == nil {
		t.Errorf("expected size error, got %+v", sources)
	}
}

func TestLoad_file(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meters.xlsx")
	if err := os.WriteFile(path, meterWorkbook(t), 0600); err != nil {
		t.Fatal(err)
	}
	sources := NewExtractor().Load(path)
	if len(sources) != 1 || sources[0].Err != nil || sources[0].Name != "meters.xlsx" {
		t.Errorf("got %+v", sources)
	}
}

func TestLoad_nonexistent(t *testing.T) {
	sources := NewExtractor().Load("/nonexistent/path/meters.xlsx")
	if len(sources) != 1 || !errors.Is(sources[0].Err, models.ErrSourceUnreadable) {
		t.Errorf("got %+v", sources)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.xlsx", true},
		{"a.XLSX", true},
		{"a.ods", true},
		{"a.csv", true},
		{"a.zip", true},
		{"a.xls", false},
		{"a.pdf", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.name); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
