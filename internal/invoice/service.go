package invoice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/coreb-invoice/internal/catalog"
	"github.com/noah-isme/coreb-invoice/internal/common"
	"github.com/noah-isme/coreb-invoice/internal/lock"
	"github.com/noah-isme/coreb-invoice/internal/obs"
	"github.com/noah-isme/coreb-invoice/internal/pdf"
)

const tracerName = "invoice"

// LockPrefix namespaces per-project lock keys.
const LockPrefix = "invoice:lock"

// CatalogSource supplies the service price list and flat-price exemptions.
type CatalogSource interface {
	Services(ctx context.Context) (catalog.Catalog, error)
	Exemptions(ctx context.Context) (catalog.Exemptions, error)
}

// Locker serialises work on one key across processes.
type Locker interface {
	Key(parts ...string) string
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig configures Service dependencies.
type ServiceConfig struct {
	Store     Store
	Catalog   CatalogSource
	Snapshots *Snapshots
	Filler    pdf.Filler
	// Locker is optional. Without it concurrent edits of one project are
	// last-write-wins.
	Locker   Locker
	LockTTL  time.Duration
	Validate *validator.Validate
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Service implements the invoice workflows.
type Service struct {
	store     Store
	catalog   CatalogSource
	snapshots *Snapshots
	filler    pdf.Filler
	locker    Locker
	lockTTL   time.Duration
	validate  *validator.Validate
	log       zerolog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("invoice: store is required")
	case cfg.Catalog == nil:
		return nil, errors.New("invoice: catalog source is required")
	case cfg.Snapshots == nil:
		return nil, errors.New("invoice: snapshots are required")
	case cfg.Filler == nil:
		return nil, errors.New("invoice: pdf filler is required")
	}
	if cfg.Validate == nil {
		cfg.Validate = validator.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Service{
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		snapshots: cfg.Snapshots,
		filler:    cfg.Filler,
		locker:    cfg.Locker,
		lockTTL:   cfg.LockTTL,
		validate:  cfg.Validate,
		log:       cfg.Logger,
		now:       cfg.Now,
	}, nil
}

// Session is an editable invoice for one order.
type Session struct {
	OrderNum        string            `json:"order_num"`
	ServiceType     string            `json:"service_type"`
	SampleNum       string            `json:"sample_num"`
	Hidden          map[string]string `json:"fields_hidden"`
	Lines           []Line            `json:"invoices"`
	PercentDiscount float64           `json:"percent_discount"`
}

// OpenSession resolves the requested services and makes sure each one, plus
// the all-services discount line, has a record for the order.
func (s *Service) OpenSession(ctx context.Context, req SessionRequest) (sess Session, err error) {
	ctx, span := obs.StartSpan(ctx, tracerName, "invoice.OpenSession", attribute.String("project_id", req.OrderNum))
	defer func() {
		obs.EndSpan(span, err)
		obs.InvoiceSessionsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if err := s.validate.Struct(req); err != nil {
		return Session{}, common.ValidationError(validationMessage(err), err)
	}
	billing, err := ParseBillingInfo(req.BMInfo)
	if err != nil {
		return Session{}, common.ValidationError(billingInfoMessage, err)
	}

	hidden := map[string]string{
		FieldAccountNumber: billing.AccountNumber,
		FieldQuantity:      req.SampleNum,
		FieldOrderNumber:   req.OrderNum,
		FieldManagerName:   billing.ManagerName,
		FieldPIName:        req.PIName,
	}
	selection := req.Services
	if req.ServiceType == BioRenderLicense {
		hidden[FieldBioRenderAccounts] = req.Services
		selection = req.ServiceType
	}

	priceList, err := s.catalog.Services(ctx)
	if err != nil {
		return Session{}, common.InternalError(fmt.Errorf("load service catalog: %w", err))
	}
	entries := catalog.Resolve(selection, priceList)

	var (
		lines    []Line
		priceSum float64
		created  int
	)
	err = s.withProjectLock(ctx, req.OrderNum, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			lines, priceSum, created = nil, 0, 0
			for _, e := range entries {
				price, err := e.UnitPrice()
				if err != nil {
					return err
				}
				line, isNew, err := GetOrCreate(ctx, tx, req.OrderNum, e.Service, price.InexactFloat64())
				if err != nil {
					return err
				}
				if isNew {
					created++
				}
				lines = append(lines, line)
				priceSum += line.TotalPrice
			}
			line, isNew, err := GetOrCreate(ctx, tx, req.OrderNum, AllServicesDiscount, 0)
			if err != nil {
				return err
			}
			if isNew {
				created++
			}
			lines = append(lines, line)
			return nil
		})
	})
	if err != nil {
		return Session{}, s.storeError(err)
	}
	obs.InvoiceLinesCreatedTotal.Add(float64(created))

	discount := lines[len(lines)-1]
	s.log.Info().
		Str("project_id", req.OrderNum).
		Int("services", len(entries)).
		Int("created", created).
		Msg("invoice session opened")

	return Session{
		OrderNum:        req.OrderNum,
		ServiceType:     req.ServiceType,
		SampleNum:       req.SampleNum,
		Hidden:          hidden,
		Lines:           lines,
		PercentDiscount: LegacyPercentDiscount(discount.TotalDiscount, priceSum),
	}, nil
}

// Generated is a computed, persisted and rendered invoice.
type Generated struct {
	Result Result
	Fields pdf.Fields
	PDF    []byte
}

// Generate computes the submitted invoice, renders the PDF and writes every
// line back in a single transaction. Input errors leave the store untouched.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (gen Generated, err error) {
	start := time.Now()
	ctx, span := obs.StartSpan(ctx, tracerName, "invoice.Generate",
		attribute.String("project_id", req.OrderNumber),
		attribute.Int("lines", len(req.Lines)),
	)
	defer func() {
		obs.EndSpan(span, err)
		obs.InvoiceGeneratedTotal.WithLabelValues(outcome(err)).Inc()
		obs.InvoiceGenerateLatency.Observe(obs.DurationMillis(time.Since(start)))
	}()

	if err := s.validate.Struct(req); err != nil {
		return Generated{}, common.ValidationError(validationMessage(err), err)
	}
	exemptions, err := s.catalog.Exemptions(ctx)
	if err != nil {
		return Generated{}, common.InternalError(fmt.Errorf("load flat-price services: %w", err))
	}

	res, err := Compute(req.Lines, exemptions.Contains)
	if err != nil {
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			return Generated{}, common.ValidationError(lineErr.Message(), err).WithDetails(map[string]any{
				"line":    lineErr.Index,
				"service": lineErr.Service,
				"field":   lineErr.Field,
			})
		}
		return Generated{}, common.InternalError(err)
	}
	if standard := len(res.Lines) - countAllServices(res.Lines); OverlapsAllServices(standard) {
		s.log.Warn().Str("project_id", req.OrderNumber).Int("services", standard).
			Msg("service rows overlap the all-services discount row")
	}

	fields := BuildFields(FormHeader{
		AccountNumber:     req.AccountNumber,
		OrderNumber:       req.OrderNumber,
		ManagerName:       req.ManagerName,
		PIName:            req.PIName,
		BioRenderAccounts: req.BioRenderAccounts,
		Date:              s.now(),
	}, res)
	body, err := s.filler.Fill(ctx, fields)
	if err != nil {
		return Generated{}, common.InternalError(fmt.Errorf("render invoice pdf: %w", err))
	}

	err = s.withProjectLock(ctx, req.OrderNumber, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			for _, c := range res.Lines {
				line, err := tx.Get(ctx, req.OrderNumber, c.Service)
				if err != nil {
					return fmt.Errorf("service %q: %w", c.Service, err)
				}
				if err := tx.Update(ctx, c.Apply(line)); err != nil {
					return fmt.Errorf("service %q: %w", c.Service, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return Generated{}, s.storeError(err)
	}

	s.log.Info().
		Str("project_id", req.OrderNumber).
		Int("lines", len(res.Lines)).
		Str("grand_total", res.GrandTotal.String()).
		Str("grand_discount", res.GrandDiscount.String()).
		Msg("invoice generated")
	return Generated{Result: res, Fields: fields, PDF: body}, nil
}

// List recomputes the per-project summary, sorts it by sortKey and keeps it
// as the exportable snapshot.
func (s *Service) List(ctx context.Context, sortKey string) ([]Row, error) {
	if !ValidSortKey(sortKey) {
		return nil, common.NewAppError(common.CodeInvalidSort, fmt.Sprintf("unknown sort column %q", sortKey), http.StatusBadRequest, ErrUnknownSortKey)
	}
	if err := s.snapshots.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("invalidate invoice snapshot")
	}
	lines, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, common.InternalError(err)
	}
	rows, err := Sort(Aggregate(lines), sortKey)
	if err != nil {
		return nil, common.InternalError(err)
	}
	if err := s.snapshots.Put(ctx, rows); err != nil {
		s.log.Error().Err(err).Msg("store invoice snapshot")
	}
	return rows, nil
}

// Details lists the service totals recorded for a project.
func (s *Service) Details(ctx context.Context, projectID string) ([]DetailRow, error) {
	if projectID == "" {
		return nil, common.ValidationError("project_id must be provided", nil)
	}
	lines, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, common.InternalError(err)
	}
	return Details(lines), nil
}

// Delete removes every line of a project.
func (s *Service) Delete(ctx context.Context, projectID string) (int64, error) {
	if projectID == "" {
		return 0, common.ValidationError("project_id must be provided", nil)
	}
	var n int64
	err := s.withProjectLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		n, err = s.store.DeleteProject(ctx, projectID)
		return err
	})
	if err != nil {
		return 0, s.storeError(err)
	}
	s.log.Info().Str("project_id", projectID).Int64("deleted", n).Msg("invoice deleted")
	return n, nil
}

// Export renders the latest listed snapshot as CSV.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	rows, src, err := s.snapshots.Latest(ctx)
	if err != nil {
		obs.InvoiceExportsTotal.WithLabelValues("empty").Inc()
		if errors.Is(err, ErrNothingToExport) {
			return nil, common.NewAppError(common.CodeNothingToExport, "list the invoices before exporting them", http.StatusNotFound, err)
		}
		return nil, common.InternalError(err)
	}
	body, err := EncodeCSV(rows)
	if err != nil {
		obs.InvoiceExportsTotal.WithLabelValues("error").Inc()
		return nil, common.InternalError(err)
	}
	obs.InvoiceExportsTotal.WithLabelValues("ok").Inc()
	s.log.Debug().Str("source", string(src)).Int("rows", len(rows)).Msg("invoice list exported")
	return body, nil
}

func (s *Service) withProjectLock(ctx context.Context, projectID string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, s.locker.Key(projectID), s.lockTTL, fn)
}

func (s *Service) storeError(err error) error {
	if common.IsAppError(err) {
		return err
	}
	if errors.Is(err, ErrLineNotFound) {
		return common.NotFoundError("invoice line not found; open the invoice before generating it", err)
	}
	if errors.Is(err, lock.ErrTimeout) {
		return common.NewAppError(common.CodeConflict, "invoice is busy, try again", http.StatusConflict, err)
	}
	return common.InternalError(err)
}

func countAllServices(lines []ComputedLine) int {
	return lo.CountBy(lines, func(l ComputedLine) bool { return l.IsAllServicesDiscount() })
}

func outcome(err error) string {
	var appErr *common.AppError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError:
		return "rejected"
	default:
		return "error"
	}
}
