package util

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// ComicInfo is the subset of the ComicInfo.xml schema written into every CBZ.
type ComicInfo struct {
	XMLName    xml.Name `xml:"ComicInfo"`
	Title      string   `xml:"Title,omitempty"`
	Series     string   `xml:"Series,omitempty"`
	Number     string   `xml:"Number,omitempty"`
	Count      int      `xml:"Count,omitempty"`
	Summary    string   `xml:"Summary,omitempty"`
	Web        string   `xml:"Web,omitempty"`
	Translator string   `xml:"Translator,omitempty"`
	PageCount  int      `xml:"PageCount"`
}

// CreateCBZ zips the page files in name order. When info is not nil a
// ComicInfo.xml entry is appended with PageCount filled in.
func CreateCBZ(files []string, output string, info *ComicInfo) error {
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Printf("error closing output file %s: %v", output, cerr)
		}
	}()

	z := zip.NewWriter(out)
	defer func() {
		if cerr := z.Close(); cerr != nil {
			log.Printf("error closing zip writer for %s: %v", output, cerr)
		}
	}()

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, file := range sorted {
		if err := addFileToZip(z, file); err != nil {
			return fmt.Errorf("cbz: add %s: %w", file, err)
		}
	}

	if info == nil {
		return nil
	}

	info.PageCount = len(sorted)
	data, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("cbz: comic info: %w", err)
	}

	w, err := z.Create("ComicInfo.xml")
	if err != nil {
		return fmt.Errorf("cbz: comic info: %w", err)
	}
	if _, err := w.Write(append([]byte(xml.Header), data...)); err != nil {
		return fmt.Errorf("cbz: comic info: %w", err)
	}

	return nil
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Printf("error closing input file %s: %v", file, cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	// images are already compressed
	header.Method = zip.Store

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
