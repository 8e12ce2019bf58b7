package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hyperjump/jikan/internal/models"
)

// expandArchive returns one source per supported spreadsheet inside a .zip, in archive
// order. Directories, nested archives, macOS resource forks and dotfiles are skipped.
// A corrupt archive yields a single failed source.
func (e *Extractor) expandArchive(name string, content []byte) []models.Source {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return []models.Source{{
			Name: name,
			Err:  fmt.Errorf("%w: %s: not a zip: %v", models.ErrSourceUnreadable, name, err),
		}}
	}
	var sources []models.Source
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || skipMember(f.Name) {
			continue
		}
		if !Supported(f.Name) || strings.EqualFold(path.Ext(f.Name), ".zip") {
			continue
		}
		memberName := name + "/" + f.Name
		data, err := e.readMember(f)
		if err != nil {
			sources = append(sources, models.Source{
				Name: memberName,
				Err:  fmt.Errorf("%w: %s: %v", models.ErrSourceUnreadable, memberName, err),
			})
			continue
		}
		table, err := e.Table(memberName, data)
		sources = append(sources, models.Source{Name: memberName, Table: table, Err: err})
	}
	if len(sources) == 0 {
		return []models.Source{{
			Name: name,
			Err:  fmt.Errorf("%w: %s: archive contains no spreadsheets", models.ErrSourceUnreadable, name),
		}}
	}
	return sources
}

func (e *Extractor) readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, e.maxMemberBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > e.maxMemberBytes {
		return nil, fmt.Errorf("member exceeds %d bytes", e.maxMemberBytes)
	}
	return data, nil
}

func skipMember(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}
