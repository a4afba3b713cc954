package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/tealeg/xlsx/v2"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

var sampleContacts = []model.ContactRecord{
	{
		Name:            "Иван Петров",
		Email:           "ivan@example.ru",
		Phone:           "+7 495 123-45-67",
		Organization:    "ООО Ромашка",
		Position:        "директор",
		City:            "Москва",
		Confidence:      0.9,
		Source:          "msg-001",
		OtherEmails:     []string{"i.petrov@example.ru"},
		OtherPhones:     []string{"8 (495) 123-45-67"},
		MergedFromCount: 2,
	},
	{Name: "Мария Сидорова", Confidence: 0.45},
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	if err := WriteCSV(sampleContacts, path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Name" || rows[0][6] != "Confidence" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "Иван Петров" || rows[1][6] != "0.90" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[1][8] != "i.petrov@example.ru" {
		t.Errorf("other emails not joined: %q", rows[1][8])
	}
	if rows[2][10] != "1" {
		t.Errorf("merged-from must default to 1, got %q", rows[2][10])
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	if err := WriteXLSX(sampleContacts, path); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	sheet, ok := f.Sheet["Contacts"]
	if !ok {
		t.Fatal("missing Contacts sheet")
	}
	if len(sheet.Rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(sheet.Rows))
	}
	if got := sheet.Rows[1].Cells[0].String(); got != "Иван Петров" {
		t.Errorf("unexpected name cell: %q", got)
	}
	if got := sheet.Rows[1].Cells[10].String(); got != "2" {
		t.Errorf("unexpected merged-from cell: %q", got)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(nil, path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}
