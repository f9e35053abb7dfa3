package corpus

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// Loader reads a document's full content by memory-mapping the file.
type Loader struct{}

// Load returns the content of docID. Any failure to open or map the file is
// reported as ErrDocumentUnreadable so callers can skip the document.
func (Loader) Load(docID string) (string, error) {
	f, err := os.Open(docID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrDocumentUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrDocumentUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", apperrors.ErrDocumentUnreadable, docID)
	}
	if info.Size() == 0 {
		return "", nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return "", fmt.Errorf("%w: mapping %s: %v", apperrors.ErrDocumentUnreadable, docID, err)
	}
	content := string(m)
	if err := m.Unmap(); err != nil {
		return "", fmt.Errorf("%w: unmapping %s: %v", apperrors.ErrDocumentUnreadable, docID, err)
	}
	return content, nil
}
