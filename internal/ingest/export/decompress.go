package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var zipMagic = []byte("PK\x03\x04")

// exportEntryName is the main export inside the phone's export.zip. The zip
// also carries export_cda.xml, which is a different format.
const exportEntryName = "export.xml"

// OpenExport opens an export.xml, or the export.xml entry of an export.zip.
func OpenExport(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}

	magic := make([]byte, len(zipMagic))
	n, _ := io.ReadFull(f, magic)
	if !bytes.Equal(magic[:n], zipMagic) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("rewinding export: %w", err)
		}
		return f, nil
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat export: %w", err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading zip %s: %w", p, err)
	}
	entry := findExportEntry(zr.File)
	if entry == nil {
		f.Close()
		return nil, fmt.Errorf("zip %s has no %s", p, exportEntryName)
	}
	rc, err := entry.Open()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s in zip: %w", entry.Name, err)
	}
	return &zipEntryReader{ReadCloser: rc, file: f}, nil
}

// findExportEntry prefers the shallowest entry named export.xml.
func findExportEntry(files []*zip.File) *zip.File {
	var best *zip.File
	for _, zf := range files {
		if zf.FileInfo().IsDir() || path.Base(zf.Name) != exportEntryName {
			continue
		}
		if best == nil || strings.Count(zf.Name, "/") < strings.Count(best.Name, "/") {
			best = zf
		}
	}
	return best
}

type zipEntryReader struct {
	io.ReadCloser
	file *os.File
}

func (z *zipEntryReader) Close() error {
	err := z.ReadCloser.Close()
	if ferr := z.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// FindExports returns the export files at root: root itself when it is a
// file, otherwise every .zip and .xml below it except CDA documents.
func FindExports(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		switch {
		case strings.HasSuffix(name, "_cda.xml"):
		case strings.HasSuffix(name, ".xml"), strings.HasSuffix(name, ".zip"):
			found = append(found, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}
