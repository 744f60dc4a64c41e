package labels

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFMerger concatenates label documents page by page.
type PDFMerger struct{}

func NewPDFMerger() *PDFMerger {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFMerger{}
}

func (m *PDFMerger) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Merge returns a single document holding every page of docs in order.
// A lone document is returned as is.
func (m *PDFMerger) Merge(docs [][]byte) ([]byte, error) {
	switch len(docs) {
	case 0:
		return nil, ErrNoLabels
	case 1:
		return docs[0], nil
	}

	readers := make([]io.ReadSeeker, len(docs))
	for i, doc := range docs {
		readers[i] = bytes.NewReader(doc)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, m.conf()); err != nil {
		return nil, fmt.Errorf("failed to merge %d labels: %w", len(docs), err)
	}
	return out.Bytes(), nil
}

// PageCount reports how many pages doc has.
func (m *PDFMerger) PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), m.conf())
	if err != nil {
		return 0, fmt.Errorf("failed to read label document: %w", err)
	}
	return n, nil
}
