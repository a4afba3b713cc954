// Package export writes deduplicated contacts to operator-facing files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// contactColumns defines the ordered output columns shared by the CSV
// and XLSX writers.
var contactColumns = []string{
	"Name",
	"Email",
	"Phone",
	"Organization",
	"Position",
	"City",
	"Confidence",
	"Source",
	"Other Emails",
	"Other Phones",
	"Merged From",
}

// WriteCSV writes contacts as a CSV file with a header row.
func WriteCSV(contacts []model.ContactRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(contactColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, c := range contacts {
		if err := w.Write(buildRow(c)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

// WriteXLSX writes contacts as a single-sheet workbook.
func WriteXLSX(contacts []model.ContactRecord, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contacts")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range contactColumns {
		header.AddCell().Value = col
	}

	for _, c := range contacts {
		row := sheet.AddRow()
		for _, v := range buildRow(c) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(f.Save(outputPath), "export: save xlsx")
}

// buildRow maps a contact to one output row in contactColumns order.
func buildRow(c model.ContactRecord) []string {
	mergedFrom := c.MergedFromCount
	if mergedFrom <= 0 {
		mergedFrom = 1
	}
	return []string{
		c.Name,
		c.Email,
		c.Phone,
		c.Organization,
		c.Position,
		c.City,
		fmt.Sprintf("%.2f", c.Confidence),
		c.Source,
		strings.Join(c.OtherEmails, "; "),
		strings.Join(c.OtherPhones, "; "),
		fmt.Sprintf("%d", mergedFrom),
	}
}
