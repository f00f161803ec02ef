package invoice

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// MaxFormServices bounds the number of service lines accepted per invoice.
const MaxFormServices = 50

// ErrBillingInfoFormat is returned when billing info is not exactly
// "account number, manager name, phone number".
var ErrBillingInfoFormat = errors.New("invoice: billing info is not account, manager, phone")

const billingInfoMessage = "Please correct Account number and billing contact person format (account number, manager name, phone number)"

// Hidden form field names carried from the session to generation.
const (
	FieldAccountNumber     = "Account Number"
	FieldQuantity          = "Quantity"
	FieldOrderNumber       = "Order Number"
	FieldManagerName       = "Manager Name"
	FieldPIName            = "PI Name"
	FieldBioRenderAccounts = "BioRender Accounts"
	FieldServicesNumber    = "Services Number"
)

// SessionRequest opens an editable invoice for an order.
type SessionRequest struct {
	OrderNum    string `validate:"required"`
	PIName      string
	BMInfo      string `validate:"required"`
	ServiceType string
	Services    string
	SampleNum   string
}

// ParseSessionForm reads a session request from submitted form values.
func ParseSessionForm(v url.Values) SessionRequest {
	return SessionRequest{
		OrderNum:    strings.TrimSpace(v.Get("order_num")),
		PIName:      strings.TrimSpace(v.Get("pi_name")),
		BMInfo:      v.Get("bm_info"),
		ServiceType: strings.TrimSpace(v.Get("service_type")),
		Services:    v.Get("services"),
		SampleNum:   strings.TrimSpace(v.Get("sample_num")),
	}
}

// BillingInfo is the parsed "account, manager, phone" triple.
type BillingInfo struct {
	AccountNumber string
	ManagerName   string
	Phone         string
}

// ParseBillingInfo splits raw on commas. Exactly three parts are required.
func ParseBillingInfo(raw string) (BillingInfo, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return BillingInfo{}, ErrBillingInfoFormat
	}
	return BillingInfo{
		AccountNumber: strings.TrimSpace(parts[0]),
		ManagerName:   strings.TrimSpace(parts[1]),
		Phone:         strings.TrimSpace(parts[2]),
	}, nil
}

// GenerateRequest is a filled-in invoice ready to compute.
type GenerateRequest struct {
	OrderNumber       string `validate:"required"`
	PIName            string
	AccountNumber     string
	ManagerName       string
	BioRenderAccounts string
	Lines             []LineInput `validate:"max=50"`
}

// ServiceFormKeys names the form fields of the i-th service line.
type ServiceFormKeys struct {
	Name           string
	Qty            string
	Price          string
	DiscountReason string
	DiscountQty    string
	DiscountAmount string
}

// ServiceKeys returns the field names of the i-th service line.
func ServiceKeys(i int) ServiceFormKeys {
	p := "service " + strconv.Itoa(i) + " "
	return ServiceFormKeys{
		Name:           p + "name",
		Qty:            p + "qty",
		Price:          p + "price",
		DiscountReason: p + "discount reason",
		DiscountQty:    p + "discount qty",
		DiscountAmount: p + "discount amount",
	}
}

// ParseGenerateForm reads a generation request from submitted form values.
// "Services Number" lines are read; a blank count means none.
func ParseGenerateForm(v url.Values) (GenerateRequest, error) {
	req := GenerateRequest{
		OrderNumber:       strings.TrimSpace(v.Get(FieldOrderNumber)),
		PIName:            strings.TrimSpace(v.Get(FieldPIName)),
		AccountNumber:     strings.TrimSpace(v.Get(FieldAccountNumber)),
		ManagerName:       strings.TrimSpace(v.Get(FieldManagerName)),
		BioRenderAccounts: v.Get(FieldBioRenderAccounts),
	}

	count := 0
	if raw := strings.TrimSpace(v.Get(FieldServicesNumber)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return GenerateRequest{}, fmt.Errorf("%s must be a non-negative whole number", FieldServicesNumber)
		}
		count = n
	}
	if count > MaxFormServices {
		return GenerateRequest{}, fmt.Errorf("at most %d services can be invoiced at once", MaxFormServices)
	}

	req.Lines = make([]LineInput, 0, count)
	for i := 0; i < count; i++ {
		k := ServiceKeys(i)
		req.Lines = append(req.Lines, LineInput{
			Service:        strings.TrimSpace(v.Get(k.Name)),
			Qty:            v.Get(k.Qty),
			Price:          v.Get(k.Price),
			DiscountReason: v.Get(k.DiscountReason),
			DiscountQty:    v.Get(k.DiscountQty),
			DiscountAmount: v.Get(k.DiscountAmount),
		})
	}
	return req, nil
}

// validationMessage turns validator output into one readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be provided", fe.Field())
	case "max":
		return fmt.Sprintf("%s exceeds the maximum of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
