package invoice

import (
	"net/url"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestParseBillingInfo(t *testing.T) {
	info, err := ParseBillingInfo("ACC-1, Dana Smith , 555-0100")
	require.NoError(t, err)
	require.Equal(t, BillingInfo{AccountNumber: "ACC-1", ManagerName: "Dana Smith", Phone: "555-0100"}, info)

	for _, raw := range []string{"", "ACC-1, Dana", "a,b,c,d"} {
		_, err := ParseBillingInfo(raw)
		require.ErrorIs(t, err, ErrBillingInfoFormat, raw)
	}
}

func TestParseGenerateForm(t *testing.T) {
	v := url.Values{}
	v.Set(FieldOrderNumber, " P100 ")
	v.Set(FieldAccountNumber, "ACC-1")
	v.Set(FieldServicesNumber, "2")
	k0, k1 := ServiceKeys(0), ServiceKeys(1)
	v.Set(k0.Name, "RNA-seq")
	v.Set(k0.Qty, "3")
	v.Set(k0.Price, "10")
	v.Set(k1.Name, AllServicesDiscount)
	v.Set(k1.DiscountReason, "Promo")
	v.Set(k1.DiscountAmount, "5")

	req, err := ParseGenerateForm(v)
	require.NoError(t, err)
	require.Equal(t, "P100", req.OrderNumber)
	require.Equal(t, "ACC-1", req.AccountNumber)
	require.Equal(t, []LineInput{
		{Service: "RNA-seq", Qty: "3", Price: "10"},
		{Service: AllServicesDiscount, DiscountReason: "Promo", DiscountAmount: "5"},
	}, req.Lines)
}

func TestParseGenerateFormCount(t *testing.T) {
	req, err := ParseGenerateForm(url.Values{})
	require.NoError(t, err)
	require.Empty(t, req.Lines)

	_, err = ParseGenerateForm(url.Values{FieldServicesNumber: {"many"}})
	require.Error(t, err)

	_, err = ParseGenerateForm(url.Values{FieldServicesNumber: {"51"}})
	require.Error(t, err)
}

func TestServiceKeys(t *testing.T) {
	require.Equal(t, ServiceFormKeys{
		Name:           "service 3 name",
		Qty:            "service 3 qty",
		Price:          "service 3 price",
		DiscountReason: "service 3 discount reason",
		DiscountQty:    "service 3 discount qty",
		DiscountAmount: "service 3 discount amount",
	}, ServiceKeys(3))
}

func TestValidationMessage(t *testing.T) {
	err := validator.New().Struct(SessionRequest{BMInfo: "a,b,c"})
	require.Equal(t, "OrderNum must be provided", validationMessage(err))
}
