package invoice

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coreb-invoice/internal/cache"
	"github.com/noah-isme/coreb-invoice/internal/catalog"
	"github.com/noah-isme/coreb-invoice/internal/common"
	"github.com/noah-isme/coreb-invoice/internal/lock"
	"github.com/noah-isme/coreb-invoice/internal/pdf"
)

type stubCatalog struct {
	services catalog.Catalog
	flat     catalog.Catalog
}

func (c stubCatalog) Services(context.Context) (catalog.Catalog, error) { return c.services, nil }
func (c stubCatalog) Exemptions(context.Context) (catalog.Exemptions, error) {
	return catalog.NewExemptions(c.flat), nil
}

type recordingFiller struct {
	fields pdf.Fields
	err    error
}

func (f *recordingFiller) Fill(_ context.Context, fields pdf.Fields) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.fields = fields
	return []byte("%PDF-stub"), nil
}

type countingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *countingLocker) Key(parts ...string) string {
	return lock.Locker{Prefix: LockPrefix}.Key(parts...)
}

func (l *countingLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type fixture struct {
	svc    *Service
	store  *memStore
	filler *recordingFiller
	locker *countingLocker
}

func newFixture(t *testing.T, lines ...Line) fixture {
	t.Helper()
	f := fixture{
		store:  newMemStore(lines...),
		filler: &recordingFiller{},
		locker: &countingLocker{},
	}
	svc, err := NewService(ServiceConfig{
		Store: f.store,
		Catalog: stubCatalog{
			services: catalog.Catalog{
				{Service: "RNA-seq", Price: "120"},
				{Service: "ATAC-seq", Price: "80.5"},
				{Service: "Consultation", Price: "200"},
				{Service: BioRenderLicense, Price: "50"},
			},
			flat: catalog.Catalog{{Service: "Consultation"}},
		},
		Snapshots: NewSnapshots(cache.NewMemoryStore(time.Minute), cache.NewMemoryStore(time.Minute), time.Hour, zerolog.Nop()),
		Filler:    f.filler,
		Locker:    f.locker,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func requireAppError(t *testing.T, err error, code string, status int) *common.AppError {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}

func TestOpenSessionCreatesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.OpenSession(ctx, SessionRequest{
		OrderNum:  "P100",
		PIName:    "Dr. Lee",
		BMInfo:    "ACC-1, Dana, 555-0100",
		Services:  "RNA-seq and ATAC-seq",
		SampleNum: "4",
	})
	require.NoError(t, err)
	require.Equal(t, "P100", sess.OrderNum)
	require.Equal(t, "ACC-1", sess.Hidden[FieldAccountNumber])
	require.Equal(t, "Dana", sess.Hidden[FieldManagerName])
	require.Equal(t, "4", sess.Hidden[FieldQuantity])
	require.Len(t, sess.Lines, 3)
	require.Equal(t, "RNA-seq", sess.Lines[0].ServiceType)
	require.Equal(t, 120.0, sess.Lines[0].ServiceSamplePrice)
	require.Equal(t, "ATAC-seq", sess.Lines[1].ServiceType)
	require.Equal(t, AllServicesDiscount, sess.Lines[2].ServiceType)
	require.Zero(t, sess.PercentDiscount)
	require.Equal(t, []string{"invoice:lock:P100"}, f.locker.keys)

	again, err := f.svc.OpenSession(ctx, SessionRequest{OrderNum: "P100", BMInfo: "ACC-1, Dana, 555-0100", Services: "RNA-seq"})
	require.NoError(t, err)
	require.Len(t, again.Lines, 2)
	all, _ := f.store.ListAll(ctx)
	require.Len(t, all, 3)
}

func TestOpenSessionReportsLegacyPercent(t *testing.T) {
	f := newFixture(t,
		Line{ProjectID: "P1", ServiceType: "RNA-seq", TotalPrice: 100},
		Line{ProjectID: "P1", ServiceType: AllServicesDiscount, TotalDiscount: 60},
	)
	sess, err := f.svc.OpenSession(context.Background(), SessionRequest{OrderNum: "P1", BMInfo: "a,b,c", Services: "RNA-seq"})
	require.NoError(t, err)
	require.Equal(t, 100.0, sess.PercentDiscount)
}

func TestOpenSessionBioRender(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.OpenSession(context.Background(), SessionRequest{
		OrderNum:    "P7",
		BMInfo:      "a,b,c",
		ServiceType: BioRenderLicense,
		Services:    "alice@lab.org, bob@lab.org",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@lab.org, bob@lab.org", sess.Hidden[FieldBioRenderAccounts])
	require.Len(t, sess.Lines, 2)
	require.Equal(t, BioRenderLicense, sess.Lines[0].ServiceType)
}

func TestOpenSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OpenSession(ctx, SessionRequest{OrderNum: "P1", BMInfo: "ACC-1 Dana"})
	appErr := requireAppError(t, err, common.CodeValidation, http.StatusBadRequest)
	require.Equal(t, billingInfoMessage, appErr.Message)

	_, err = f.svc.OpenSession(ctx, SessionRequest{BMInfo: "a,b,c"})
	requireAppError(t, err, common.CodeValidation, http.StatusBadRequest)

	all, _ := f.store.ListAll(ctx)
	require.Empty(t, all)
}

func TestOpenSessionLockTimeout(t *testing.T) {
	f := newFixture(t)
	f.locker.err = lock.ErrTimeout
	_, err := f.svc.OpenSession(context.Background(), SessionRequest{OrderNum: "P1", BMInfo: "a,b,c"})
	requireAppError(t, err, common.CodeConflict, http.StatusConflict)
}

func openP100(t *testing.T, f fixture) {
	t.Helper()
	_, err := f.svc.OpenSession(context.Background(), SessionRequest{
		OrderNum: "P100",
		BMInfo:   "ACC-1, Dana, 555-0100",
		Services: "RNA-seq, ATAC-seq, Consultation",
	})
	require.NoError(t, err)
}

func TestDeleteWaitsOnHeldProjectLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore(Line{ProjectID: "P7", ServiceType: "RNA-seq"})
	svc, err := NewService(ServiceConfig{
		Store:     store,
		Catalog:   stubCatalog{},
		Snapshots: NewSnapshots(cache.NewMemoryStore(time.Minute), nil, time.Hour, zerolog.Nop()),
		Filler:    &recordingFiller{},
		Locker:    lock.Locker{R: client, Prefix: LockPrefix, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, mr.Set("invoice:lock:P7", "other-holder"))
	_, err = svc.Delete(context.Background(), "P7")
	requireAppError(t, err, common.CodeConflict, http.StatusConflict)
	_, ok := store.get("P7", "RNA-seq")
	require.True(t, ok)

	mr.Del("invoice:lock:P7")
	n, err := svc.Delete(context.Background(), "P7")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestGeneratePersistsAndRenders(t *testing.T) {
	f := newFixture(t)
	openP100(t, f)

	gen, err := f.svc.Generate(context.Background(), GenerateRequest{
		OrderNumber:   "P100",
		AccountNumber: "ACC-1",
		ManagerName:   "Dana",
		PIName:        "Dr. Lee",
		Lines: []LineInput{
			{Service: "RNA-seq", Qty: "2", Price: "120", DiscountReason: "Pilot", DiscountQty: "1", DiscountAmount: "20"},
			{Service: "Consultation", Qty: "3", Price: "200"},
			{Service: AllServicesDiscount, DiscountReason: "Promo", DiscountAmount: "10"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-stub"), gen.PDF)
	require.Equal(t, "$ 376.0", gen.Fields[pdf.FieldGrandTotal])
	require.Equal(t, "05/01/2024", f.filler.fields[pdf.FieldDate])

	rna, _ := f.store.get("P100", "RNA-seq")
	require.Equal(t, 240.0, rna.TotalPrice)
	require.Equal(t, 20.0, rna.TotalDiscount)
	require.Equal(t, "Pilot", rna.DiscountReason)

	consult, _ := f.store.get("P100", "Consultation")
	require.Equal(t, 200.0, consult.TotalPrice)

	all, _ := f.store.get("P100", AllServicesDiscount)
	require.Equal(t, 44.0, all.TotalDiscount)
	require.Equal(t, 1.0, all.DiscountSampleNumber)

	atac, _ := f.store.get("P100", "ATAC-seq")
	require.Zero(t, atac.TotalPrice)
}

func TestGenerateInputErrorLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	openP100(t, f)
	commits := f.store.commits

	_, err := f.svc.Generate(context.Background(), GenerateRequest{
		OrderNumber: "P100",
		Lines: []LineInput{
			{Service: "RNA-seq", Qty: "2", Price: "120"},
			{Service: "ATAC-seq", Qty: "1"},
		},
	})
	appErr := requireAppError(t, err, common.CodeValidation, http.StatusBadRequest)
	require.Equal(t, "Service price must be provided", appErr.Message)
	require.Equal(t, commits, f.store.commits)
	require.Nil(t, f.filler.fields)

	rna, _ := f.store.get("P100", "RNA-seq")
	require.Zero(t, rna.TotalPrice)
}

func TestGenerateUnknownLineIsNotFound(t *testing.T) {
	f := newFixture(t)
	openP100(t, f)
	_, err := f.svc.Generate(context.Background(), GenerateRequest{
		OrderNumber: "P100",
		Lines: []LineInput{
			{Service: "RNA-seq", Qty: "1", Price: "120"},
			{Service: "Proteomics", Qty: "1", Price: "10"},
		},
	})
	requireAppError(t, err, common.CodeNotFound, http.StatusNotFound)

	rna, _ := f.store.get("P100", "RNA-seq")
	require.Zero(t, rna.TotalPrice)
}

func TestGenerateRenderFailure(t *testing.T) {
	f := newFixture(t)
	openP100(t, f)
	f.filler.err = errBoom
	_, err := f.svc.Generate(context.Background(), GenerateRequest{
		OrderNumber: "P100",
		Lines:       []LineInput{{Service: "RNA-seq", Qty: "1", Price: "120"}},
	})
	requireAppError(t, err, common.CodeInternal, http.StatusInternalServerError)
	rna, _ := f.store.get("P100", "RNA-seq")
	require.Zero(t, rna.TotalPrice)
}

func TestListSnapshotAndExport(t *testing.T) {
	f := newFixture(t,
		Line{ProjectID: "P2", ServiceType: "RNA-seq", TotalPrice: 50},
		Line{ProjectID: "P1", ServiceType: "RNA-seq", TotalPrice: 100, TotalDiscount: 10},
	)
	ctx := context.Background()

	_, err := f.svc.Export(ctx)
	requireAppError(t, err, common.CodeNothingToExport, http.StatusNotFound)

	rows, err := f.svc.List(ctx, SortTotalPrice)
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P2"}, ids(rows))

	body, err := f.svc.Export(ctx)
	require.NoError(t, err)
	require.Equal(t, "Project ID,Total price,Total discount,Final price\nP1,100.0,10.0,90.0\nP2,50.0,0.0,50.0\n", string(body))
}

func TestGenerateTotalsSurviveListing(t *testing.T) {
	f := newFixture(t)
	openP100(t, f)
	ctx := context.Background()

	gen, err := f.svc.Generate(ctx, GenerateRequest{
		OrderNumber: "P100",
		Lines: []LineInput{
			{Service: "RNA-seq", Qty: "1.5", Price: "66.9", DiscountReason: "Pilot", DiscountQty: "1", DiscountAmount: "7.1"},
			{Service: "ATAC-seq", Qty: "3", Price: "12.3"},
			{Service: "Consultation", Qty: "2", Price: "0.55"},
			{Service: AllServicesDiscount, DiscountReason: "Promo", DiscountAmount: "5"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "137.85", gen.Result.GrandTotal.String())

	rows, err := f.svc.List(ctx, SortOriginal)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, Row{
		ProjectID:     "P100",
		TotalPrice:    gen.Result.GrandTotal.InexactFloat64(),
		TotalDiscount: gen.Result.GrandDiscount.InexactFloat64(),
		FinalPrice:    gen.Result.Payable.InexactFloat64(),
	}, rows[0])
}

func TestListRejectsUnknownSortBeforeInvalidating(t *testing.T) {
	f := newFixture(t, Line{ProjectID: "P1", ServiceType: "RNA-seq", TotalPrice: 10})
	ctx := context.Background()
	_, err := f.svc.List(ctx, SortOriginal)
	require.NoError(t, err)

	_, err = f.svc.List(ctx, "Colour")
	requireAppError(t, err, common.CodeInvalidSort, http.StatusBadRequest)

	rows, src, err := f.svc.snapshots.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, SourcePrimary, src)
	require.Len(t, rows, 1)
}

func TestDetailsAndDelete(t *testing.T) {
	f := newFixture(t,
		Line{ProjectID: "P1", ServiceType: "RNA-seq", TotalPrice: 100},
		Line{ProjectID: "P1", ServiceType: AllServicesDiscount, TotalDiscount: 10},
		Line{ProjectID: "P2", ServiceType: "RNA-seq", TotalPrice: 5},
	)
	ctx := context.Background()

	rows, err := f.svc.Details(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, []DetailRow{
		{Service: "RNA-seq", TotalPrice: 100},
		{Service: AllServicesDiscount, TotalDiscount: 10},
	}, rows)

	_, err = f.svc.Details(ctx, "")
	requireAppError(t, err, common.CodeValidation, http.StatusBadRequest)

	n, err := f.svc.Delete(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	left, _ := f.store.ListAll(ctx)
	require.Len(t, left, 1)

	n, err = f.svc.Delete(ctx, "P1")
	require.NoError(t, err)
	require.Zero(t, n)
}
