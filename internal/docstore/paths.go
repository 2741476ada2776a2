package docstore

import (
	"fmt"
	"path/filepath"
)

const (
	pdfDirName   = "pdfs"
	imageDirName = "images"

	maxDocIDLen = 255
)

// Layout maps document identifiers to their canonical locations under the
// storage root. It performs no I/O.
//
// PDFs live at {base}/pdfs/{docID}.pdf and page images at
// {base}/images/{docID}_p{page}.jpg. The image naming convention is
// load-bearing: document deletion finds a document's pages by matching the
// {docID}_p prefix.
type Layout struct {
	base string
}

// NewLayout creates a Layout rooted at base.
func NewLayout(base string) Layout {
	return Layout{base: base}
}

// PDFDir returns the directory holding whole-document PDFs.
func (l Layout) PDFDir() string { return filepath.Join(l.base, pdfDirName) }

// ImageDir returns the directory holding per-page images.
func (l Layout) ImageDir() string { return filepath.Join(l.base, imageDirName) }

// PDFPath returns the canonical path of the PDF stored for docID.
func (l Layout) PDFPath(docID string) string {
	return filepath.Join(l.PDFDir(), docID+".pdf")
}

// ImagePath returns the canonical path of the page image stored for
// (docID, page).
func (l Layout) ImagePath(docID string, page int) string {
	return filepath.Join(l.ImageDir(), fmt.Sprintf("%s_p%d.jpg", docID, page))
}

// imagePrefix is the filename prefix shared by every page image of docID.
func imagePrefix(docID string) string { return docID + "_p" }

// ValidateDocID rejects identifiers that cannot be safely embedded in a
// filename: empty or oversized ids, path separators, traversal components,
// and control bytes.
func ValidateDocID(docID string) error {
	switch {
	case docID == "":
		return fmt.Errorf("%w: empty", ErrInvalidDocID)
	case len(docID) > maxDocIDLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidDocID, maxDocIDLen)
	case docID == "." || docID == "..":
		return fmt.Errorf("%w: %q", ErrInvalidDocID, docID)
	}

	for i := 0; i < len(docID); i++ {
		c := docID[i]
		if c == '/' || c == '\\' || c < 0x20 || c == 0x7f {
			return fmt.Errorf("%w: forbidden byte %#x", ErrInvalidDocID, c)
		}
	}

	return nil
}

func validatePage(page int) error {
	if page < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	return nil
}
