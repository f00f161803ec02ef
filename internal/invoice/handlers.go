package invoice

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/coreb-invoice/internal/common"
)

const maxFormMemory = 8 << 20

// API is the part of Service the HTTP layer depends on.
type API interface {
	OpenSession(ctx context.Context, req SessionRequest) (Session, error)
	Generate(ctx context.Context, req GenerateRequest) (Generated, error)
	List(ctx context.Context, sortKey string) ([]Row, error)
	Details(ctx context.Context, projectID string) ([]DetailRow, error)
	Delete(ctx context.Context, projectID string) (int64, error)
	Export(ctx context.Context) ([]byte, error)
}

// Handler wires invoice workflows to HTTP.
type Handler struct {
	Svc            API
	DefaultPerPage int
	MaxPerPage     int
}

// Routes mounts the invoice endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/session", h.Session)
	r.Post("/generate", h.Generate)
	r.Get("/", h.List)
	r.Post("/", h.List)
	r.Get("/details", h.Details)
	r.Delete("/", h.Delete)
	r.Get("/export", h.Export)
}

// Session opens an editable invoice for an order.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		common.WriteError(w, err)
		return
	}
	sess, err := h.Svc.OpenSession(r.Context(), ParseSessionForm(r.Form))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess})
}

// Generate computes, stores and returns the invoice PDF.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		common.WriteError(w, err)
		return
	}
	req, err := ParseGenerateForm(r.Form)
	if err != nil {
		common.WriteError(w, common.ValidationError(err.Error(), err))
		return
	}
	gen, err := h.Svc.Generate(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="invoice-`+sanitizeFilename(req.OrderNumber)+`.pdf"`)
	w.Header().Set("X-Invoice-Payable", FormatAmount(gen.Result.Payable))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gen.PDF)
}

// List returns the per-project summary sorted by the "sort" parameter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		common.WriteError(w, err)
		return
	}
	rows, err := h.Svc.List(r.Context(), r.FormValue("sort"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	window, meta := common.Paginate(rows, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       window,
		"pagination": meta,
	})
}

// Details returns the service totals of one project.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.Details(r.Context(), strings.TrimSpace(r.URL.Query().Get("project_id")))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Delete removes every line of a project.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	n, err := h.Svc.Delete(r.Context(), projectID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"project_id": projectID, "deleted": n},
	})
}

// Export downloads the last listed summary as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	body, err := h.Svc.Export(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Attachment(w, "text/csv; charset=utf-8", ExportFilename, body)
}

func parseForm(r *http.Request) error {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, http.ErrNotMultipart):
		return nil
	case errors.As(err, &tooLarge):
		return common.NewAppError(common.CodeValidation, "request body too large", http.StatusRequestEntityTooLarge, err)
	default:
		return common.ValidationError("malformed form body", err)
	}
}

func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "order"
	}
	return s
}
