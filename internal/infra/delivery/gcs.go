package delivery

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"

	"cloud.google.com/go/storage"
)

// GCSSender archives each report as an HTML object in a bucket.
// It assumes Application Default Credentials are configured.
type GCSSender struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSender creates a storage client for the given bucket.
func NewGCSSender(ctx context.Context, bucket, prefix string) (*GCSSender, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSender{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSender) Name() string { return "gcs" }

// ObjectName is where a report for the given window is archived:
// <prefix>/<start>_<end>.html. Reruns for the same window overwrite it.
func ObjectName(prefix string, w domain.DateWindow) string {
	name := w.Start.Format(domain.DateLayout) + "_" + w.End.Format(domain.DateLayout) + ".html"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Send uploads the report HTML.
func (s *GCSSender) Send(ctx context.Context, r *domain.Report) (*domain.DeliveryReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	name := ObjectName(s.prefix, r.Window)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/html; charset=utf-8"
	w.Metadata = map[string]string{
		"run_id":  r.RunID,
		"subject": r.Subject,
	}

	if _, err := w.Write([]byte(r.HTML)); err != nil {
		w.Close()
		return nil, fmt.Errorf("write object %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload of %q: %w", name, err)
	}

	return &domain.DeliveryReceipt{
		Sink:     s.Name(),
		Location: fmt.Sprintf("gs://%s/%s", s.bucket, name),
	}, nil
}

// Close releases the storage client.
func (s *GCSSender) Close() error {
	return s.client.Close()
}
