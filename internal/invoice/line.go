// Package invoice computes, persists and reports lab-order invoices.
package invoice

import "time"

// Reserved service names.
const (
	// AllServicesDiscount is the synthetic line carrying a percentage discount
	// over the whole order.
	AllServicesDiscount = "All services discount"
	// BioRenderLicense orders list license holder accounts instead of services.
	BioRenderLicense = "BioRender license"
)

// Line is the persisted record of one service on one order. It is unique by
// (ProjectID, ServiceType).
type Line struct {
	ProjectID            string    `json:"project_id"`
	ServiceType          string    `json:"service_type"`
	ServiceSampleNumber  float64   `json:"service_sample_number"`
	ServiceSamplePrice   float64   `json:"service_sample_price"`
	TotalPrice           float64   `json:"total_price"`
	DiscountSampleNumber float64   `json:"discount_sample_number"`
	DiscountSampleAmount float64   `json:"discount_sample_amount"`
	DiscountReason       string    `json:"discount_reason"`
	TotalDiscount        float64   `json:"total_discount"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewLine returns a fresh record with zero totals.
func NewLine(projectID, serviceType string, unitPrice float64) Line {
	return Line{
		ProjectID:          projectID,
		ServiceType:        serviceType,
		ServiceSamplePrice: unitPrice,
	}
}

// IsAllServicesDiscount reports whether l is the order-wide discount line.
func (l Line) IsAllServicesDiscount() bool {
	return l.ServiceType == AllServicesDiscount
}
