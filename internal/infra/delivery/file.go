package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
)

// FileSender writes the HTML report to a local file.
type FileSender struct {
	path string
}

// NewFileSender creates a FileSender writing to path.
func NewFileSender(path string) *FileSender {
	return &FileSender{path: path}
}

func (s *FileSender) Name() string { return "file" }

// Send overwrites the target file with the report HTML.
func (s *FileSender) Send(ctx context.Context, r *domain.Report) (*domain.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(r.HTML), 0o644); err != nil {
		return nil, fmt.Errorf("write report file: %w", err)
	}
	return &domain.DeliveryReceipt{Sink: s.Name(), Location: s.path}, nil
}
