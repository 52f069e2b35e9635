package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/logger"
)

// Ensure DatasetService implements the interface.
var _ driving.DatasetService = (*DatasetService)(nil)

// DatasetService loads measured property datasets, choosing a reader by
// file extension.
type DatasetService struct {
	readers    map[string]driven.DatasetReader
	downloader driven.Downloader
}

// NewDatasetService creates a dataset service. downloader may be nil, in
// which case LoadURL is unavailable.
func NewDatasetService(downloader driven.Downloader, readers ...driven.DatasetReader) *DatasetService {
	s := &DatasetService{
		readers:    make(map[string]driven.DatasetReader),
		downloader: downloader,
	}
	for _, r := range readers {
		for _, ext := range r.Extensions() {
			s.readers[strings.ToLower(ext)] = r
		}
	}
	return s
}

// LoadFile reads and validates a dataset file.
func (s *DatasetService) LoadFile(filePath string) (*domain.PhysicalPropertyDataSet, error) {
	reader, err := s.readerFor(filePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	logger.Debug("loading %s dataset %s", reader.Format(), filePath)
	return s.load(reader, f)
}

// LoadURL downloads and validates a dataset.
func (s *DatasetService) LoadURL(ctx context.Context, rawURL string) (*domain.PhysicalPropertyDataSet, error) {
	if s.downloader == nil {
		return nil, fmt.Errorf("%w: no downloader configured", domain.ErrUnsupportedType)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	reader, err := s.readerFor(path.Base(u.Path))
	if err != nil {
		return nil, err
	}
	body, err := s.downloader.Download(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("download dataset: %w", err)
	}
	defer body.Close()

	logger.Debug("loading %s dataset from %s", reader.Format(), rawURL)
	return s.load(reader, body)
}

// Formats returns the supported file extensions.
func (s *DatasetService) Formats() []string {
	exts := make([]string, 0, len(s.readers))
	for ext := range s.readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (s *DatasetService) readerFor(name string) (driven.DatasetReader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	reader, ok := s.readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: dataset format %q", domain.ErrUnsupportedType, ext)
	}
	return reader, nil
}

func (s *DatasetService) load(reader driven.DatasetReader, r io.Reader) (*domain.PhysicalPropertyDataSet, error) {
	properties, err := reader.Read(r)
	if err != nil {
		return nil, fmt.Errorf("read %s dataset: %w", reader.Format(), err)
	}
	if len(properties) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	for i := range properties {
		if properties[i].ID == "" {
			properties[i].ID = uuid.NewString()
		}
		if properties[i].Phase == "" {
			properties[i].Phase = domain.PhaseLiquid
		}
	}
	ds := domain.NewDataSet(properties...)
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
