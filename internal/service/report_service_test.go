package service_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/infra/cache"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"
	"github.com/boddenberg/ynab-shared-report/internal/port"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockCategorySource struct {
	groups []domain.CategoryGroup
	err    error
	calls  atomic.Int32
}

func (m *mockCategorySource) GetCategoryGroups(_ context.Context) ([]domain.CategoryGroup, error) {
	m.calls.Add(1)
	return m.groups, m.err
}

// blockingCategorySource holds every fetch until release is closed or the
// fetch context ends.
type blockingCategorySource struct {
	groups  []domain.CategoryGroup
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (m *blockingCategorySource) GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error) {
	if m.calls.Add(1) == 1 {
		close(m.started)
	}
	select {
	case <-m.release:
		return m.groups, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type mockTransactionSource struct {
	transactions []domain.RawTransaction
	err          error
	calls        atomic.Int32
	since        time.Time
}

func (m *mockTransactionSource) GetTransactions(_ context.Context, since time.Time) ([]domain.RawTransaction, error) {
	m.calls.Add(1)
	m.since = since
	return m.transactions, m.err
}

type mockSender struct {
	name string
	err  error
	sent []*domain.Report
}

func (m *mockSender) Name() string { return m.name }

func (m *mockSender) Send(_ context.Context, r *domain.Report) (*domain.DeliveryReceipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, r)
	return &domain.DeliveryReceipt{Sink: m.name, MessageID: r.RunID}, nil
}

// --- Fixtures ---

var testGroups = []domain.CategoryGroup{
	{Name: "Shared", Categories: []domain.Category{{ID: "groceries"}, {ID: "rent"}}},
	{Name: "Personal", Categories: []domain.Category{{ID: "hobby"}}},
}

func testTransactions() []domain.RawTransaction {
	split := plainTx("t3", "2024-03-05", "Bob Visa", "", "Split", -50000)
	split.Subtransactions = []domain.RawSubtransaction{
		sub("s1", "groceries", "Groceries", -30000),
		sub("s2", "rent", "Rent", -20000),
	}
	return []domain.RawTransaction{
		plainTx("t1", "2024-03-08", "Alice Checking", "groceries", "Groceries", -12340),
		plainTx("t2", "2024-03-06", "Alice Checking", "hobby", "Hobby", -9990),
		split,
	}
}

func newTestService(cats port.CategorySource, txs port.TransactionSource, senders ...port.ReportSender) *service.ReportService {
	return service.NewReportService(
		cats,
		txs,
		senders,
		cache.New[*domain.Report](5*time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
		service.Settings{
			SharedGroups:   []string{"Shared"},
			AccountHolders: domain.AccountHolders{"Alice", "Bob"},
			SubjectPrefix:  "Shared: ",
			DefaultIntent:  domain.WindowIntent{Period: domain.PeriodLastWeek},
			MaxConcurrency: 2,
			Now:            func() time.Time { return time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC) },
		},
	)
}

// --- Tests ---

func TestRun_Success(t *testing.T) {
	txs := &mockTransactionSource{transactions: testTransactions()}
	svc := newTestService(&mockCategorySource{groups: testGroups}, txs)

	report, err := svc.Run(context.Background(), svc.DefaultIntent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if report.Window.Key() != "2024-03-04..2024-03-10" {
		t.Errorf("unexpected window: %s", report.Window.Key())
	}
	if !txs.since.Equal(report.Window.Start) {
		t.Errorf("expected transactions fetched since window start, got %s", txs.since)
	}
	if len(report.Rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(report.Rows))
	}
	// Alice -12.34, Bob -50.00: Alice has the larger total.
	if got := service.SettlementLine(report.Summary); got != "Alice is owed $18.83 by Bob" {
		t.Errorf("unexpected settlement: %q", got)
	}
	if !strings.HasPrefix(report.Subject, "Shared: Monday 03/04/2024") {
		t.Errorf("unexpected subject: %q", report.Subject)
	}
}

func TestRun_ConfigErrorBeforeFetch(t *testing.T) {
	cats := &mockCategorySource{groups: testGroups}
	txs := &mockTransactionSource{}
	svc := newTestService(cats, txs)

	_, err := svc.Run(context.Background(), domain.WindowIntent{})

	var cfgErr *domain.ErrConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if cats.calls.Load() != 0 || txs.calls.Load() != 0 {
		t.Error("expected no fetch when the window cannot be resolved")
	}
}

func TestRun_CategoriesError(t *testing.T) {
	txs := &mockTransactionSource{}
	svc := newTestService(&mockCategorySource{err: errors.New("connection refused")}, txs)

	_, err := svc.Run(context.Background(), svc.DefaultIntent())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if txs.calls.Load() != 0 {
		t.Error("expected transactions not to be fetched after categories failed")
	}
}

func TestRun_TransactionsError(t *testing.T) {
	svc := newTestService(
		&mockCategorySource{groups: testGroups},
		&mockTransactionSource{err: &domain.ErrRateLimited{Service: "ynab"}},
	)

	_, err := svc.Run(context.Background(), svc.DefaultIntent())
	var rl *domain.ErrRateLimited
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRun_DataShapeError(t *testing.T) {
	bad := testTransactions()
	bad[0].Approved = nil

	svc := newTestService(&mockCategorySource{groups: testGroups}, &mockTransactionSource{transactions: bad})

	report, err := svc.Run(context.Background(), svc.DefaultIntent())
	var shapeErr *domain.ErrDataShape
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ErrDataShape, got %v", err)
	}
	if report != nil {
		t.Error("expected no report")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	cats := &mockCategorySource{groups: testGroups}
	svc := newTestService(cats, &mockTransactionSource{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx, svc.DefaultIntent()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cats.calls.Load() != 0 {
		t.Error("expected no fetch on a cancelled context")
	}
}

func TestPreview_UsesCache(t *testing.T) {
	cats := &mockCategorySource{groups: testGroups}
	txs := &mockTransactionSource{transactions: testTransactions()}
	svc := newTestService(cats, txs)

	first, err := svc.Preview(context.Background(), svc.DefaultIntent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Preview(context.Background(), svc.DefaultIntent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Error("expected the cached report to be returned")
	}
	if cats.calls.Load() != 1 || txs.calls.Load() != 1 {
		t.Errorf("expected one fetch, got categories=%d transactions=%d", cats.calls.Load(), txs.calls.Load())
	}
}

func TestPreview_ErrorsAreNotCached(t *testing.T) {
	cats := &mockCategorySource{err: errors.New("boom")}
	svc := newTestService(cats, &mockTransactionSource{})

	for i := 0; i < 2; i++ {
		if _, err := svc.Preview(context.Background(), svc.DefaultIntent()); err == nil {
			t.Fatal("expected error, got nil")
		}
	}
	if cats.calls.Load() != 2 {
		t.Errorf("expected failed runs to be retried, got %d calls", cats.calls.Load())
	}
}

func TestPreview_CancelledCallerDoesNotFailOthers(t *testing.T) {
	cats := &blockingCategorySource{
		groups:  testGroups,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(cats, &mockTransactionSource{transactions: testTransactions()})

	type result struct {
		report *domain.Report
		err    error
	}
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	first := make(chan result, 1)
	go func() {
		r, err := svc.Preview(firstCtx, svc.DefaultIntent())
		first <- result{r, err}
	}()
	<-cats.started

	second := make(chan result, 1)
	go func() {
		r, err := svc.Preview(context.Background(), svc.DefaultIntent())
		second <- result{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case res := <-first:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("expected the cancelled caller to get context.Canceled, got %v", res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(cats.release)
	select {
	case res := <-second:
		if res.err != nil {
			t.Fatalf("expected the second caller to get the report, got %v", res.err)
		}
		if res.report == nil || res.report.Summary.Owed != "Alice" {
			t.Errorf("unexpected report: %+v", res.report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}

	if cats.calls.Load() != 1 {
		t.Errorf("expected one shared fetch, got %d", cats.calls.Load())
	}
}

func TestPreview_SharedRunIsBounded(t *testing.T) {
	cats := &blockingCategorySource{
		groups:  testGroups,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := service.NewReportService(cats, &mockTransactionSource{}, nil,
		cache.New[*domain.Report](time.Minute), observability.NewMetrics(), zap.NewNop(),
		service.Settings{
			AccountHolders: domain.AccountHolders{"Alice", "Bob"},
			DefaultIntent:  domain.WindowIntent{Period: domain.PeriodLastWeek},
			RunTimeout:     20 * time.Millisecond,
		})

	_, err := svc.Preview(context.Background(), svc.DefaultIntent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the shared run to time out, got %v", err)
	}
}

func TestDeliver_AllSinks(t *testing.T) {
	a := &mockSender{name: "file"}
	b := &mockSender{name: "smtp"}
	svc := newTestService(&mockCategorySource{groups: testGroups}, &mockTransactionSource{transactions: testTransactions()}, a, b)

	if names := svc.SinkNames(); len(names) != 2 || names[0] != "file" || names[1] != "smtp" {
		t.Errorf("unexpected sink names: %v", names)
	}

	report, err := svc.Run(context.Background(), svc.DefaultIntent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	receipts, err := svc.Deliver(context.Background(), report)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Error("expected each sink to receive the report once")
	}
}

func TestDeliver_StopsOnFirstFailure(t *testing.T) {
	a := &mockSender{name: "smtp", err: errors.New("relay denied")}
	b := &mockSender{name: "file"}
	svc := newTestService(&mockCategorySource{groups: testGroups}, &mockTransactionSource{transactions: testTransactions()}, a, b)

	report, err := svc.Run(context.Background(), svc.DefaultIntent())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	receipts, err := svc.Deliver(context.Background(), report)
	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if extErr.Service != "smtp" {
		t.Errorf("expected failing sink smtp, got %s", extErr.Service)
	}
	if len(receipts) != 0 || len(b.sent) != 0 {
		t.Error("expected delivery to stop at the failing sink")
	}
}
