package validators

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/gamestore-backend/pkg/errors"
)

type intentBody struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Email  string `json:"email" validate:"omitempty,email"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0,"email":"nope"}`))
	var body intentBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["amount"])
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":100,"extra":true}`))
	var body intentBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePathID(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/orders/{orderId}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = ParsePathID(req, "orderId")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/17", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(17), got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	assert.True(t, pkgerrors.IsCode(gotErr, pkgerrors.CodeValidation))
}

type contactBody struct {
	Phone string `json:"phone" validate:"required,phone"`
	Qty   int    `json:"qty" validate:"gte=1,lte=20"`
}

func TestDecodeJSONBodyCustomRules(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"call me","qty":50}`))
	var body contactBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid phone number", details["phone"])
	assert.Equal(t, "must be at most 20", details["qty"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"+48 500 600 700","qty":2}`))
	require.NoError(t, DecodeJSONBody(req, &body))
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingData(t *testing.T) {
	var body contactBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	require.Error(t, err)
	assert.Equal(t, "request body is empty", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone":"500600700","qty":1}{}`)), &body)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	huge := `{"phone":"` + strings.Repeat("1", MaxBodyBytes) + `"}`
	var body contactBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &body)
	require.Error(t, err)
	assert.Contains(t, pkgerrors.As(err).Message(), "exceeds")
}

func TestNewValidatorRegistersPhoneRule(t *testing.T) {
	v, err := newValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Var("+48 500-600-700", "phone"))
	assert.Error(t, v.Var("call me", "phone"))
}

func TestMustValidatorPanicsOnRegistrationError(t *testing.T) {
	assert.Panics(t, func() {
		mustValidator(nil, errors.New("bad tag"))
	})
	v, err := newValidator()
	require.NoError(t, err)
	assert.Same(t, v, mustValidator(v, nil))
}
