package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type ExportedFile struct {
	Kind StatKind
	Path string
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("failed to write %s report: %w", t.Kind, err)
	}
	return nil
}

func safeFilePart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, s)
}

// ExportFiles writes one CSV file per table into dir. The files are meant to
// be attached to a message and removed with RemoveFiles afterwards.
func ExportFiles(dir, guildID, sheet string, tables []Table) ([]ExportedFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	files := make([]ExportedFile, 0, len(tables))

	for _, t := range tables {
		suffix, err := gonanoid.New(6)
		if err != nil {
			RemoveFiles(files)
			return nil, fmt.Errorf("failed to generate file suffix: %w", err)
		}

		name := fmt.Sprintf("%s_%s_%s_%s.csv", safeFilePart(guildID), safeFilePart(sheet), t.Kind, suffix)
		path := filepath.Join(dir, name)

		if err := writeFile(path, t); err != nil {
			RemoveFiles(files)
			return nil, err
		}
		files = append(files, ExportedFile{Kind: t.Kind, Path: path})
	}

	return files, nil
}

func writeFile(path string, t Table) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return WriteCSV(file, t)
}

func RemoveFiles(files []ExportedFile) {
	for _, f := range files {
		_ = os.Remove(f.Path)
	}
}

// RemoveStale deletes report files in dir last modified before cutoff. It
// returns how many files were removed.
func RemoveStale(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read report dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
