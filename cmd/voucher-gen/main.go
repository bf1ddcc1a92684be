// Command voucher-gen produces voucher batches for printing. It writes a
// plain text list plus an Excel sheet the print shop can take as-is. This
// tool runs at the vendor, never on a deployed till.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"beirutpos/internal/voucher"
)

func main() {
	count := flag.Int("count", 0, "number of vouchers to generate")
	outputDir := flag.String("output-dir", ".", "directory the batch files are written to")
	skipExcel := flag.Bool("no-xlsx", false, "write only the text list")
	flag.Parse()

	if *count <= 0 {
		fmt.Fprintln(os.Stderr, "voucher-gen: -count must be positive")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*count, *outputDir, !*skipExcel); err != nil {
		fmt.Fprintf(os.Stderr, "voucher-gen: %v\n", err)
		os.Exit(1)
	}
}

func run(count int, outputDir string, withExcel bool) error {
	codes, err := voucher.GenerateBatch(rand.Reader, count)
	if err != nil {
		return fmt.Errorf("generating batch: %w", err)
	}

	// Belt and braces: refuse to ship a batch that does not validate.
	for _, code := range codes {
		if err := voucher.Validate(code); err != nil {
			return fmt.Errorf("generated voucher %s failed validation: %w", code, err)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	stamp := time.Now().Format("20060102-1504")
	base := filepath.Join(outputDir, "vouchers-"+stamp)

	if err := writeText(base+".txt", codes); err != nil {
		return err
	}
	fmt.Printf("wrote %d vouchers to %s.txt\n", len(codes), base)

	if withExcel {
		if err := writeExcel(base+".xlsx", codes); err != nil {
			return err
		}
		fmt.Printf("wrote print sheet to %s.xlsx\n", base)
	}
	return nil
}

func writeText(path string, codes []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	for _, code := range codes {
		if _, err := fmt.Fprintln(f, code); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return f.Close()
}

func writeExcel(path string, codes []string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Vouchers"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	if err := f.SetCellValue(sheet, "A1", "#"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "B1", "Voucher"); err != nil {
		return err
	}
	for i, code := range codes {
		row := i + 2
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), i+1); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row), code); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 30); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
