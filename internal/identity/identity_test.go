package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/store"
)

type fakeAccounts map[string]*domain.Account

func (f fakeAccounts) GetAccountByAddress(_ context.Context, address string) (*domain.Account, error) {
	if a, ok := f[address]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"whatsapp:+2348012345678": "+2348012345678",
		" +1 (555) 010-0100 ":     "+15550100100",
		"15550100":                "15550100",
	}
	for in, want := range tests {
		got, err := NormalizeAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "whatsapp:", "hello", "+12"} {
		_, err := NormalizeAddress(in)
		assert.ErrorIs(t, err, ErrInvalidAddress, in)
	}
}

func TestMiddlewareInjectsAccount(t *testing.T) {
	acct := &domain.Account{ID: 7, Address: "+15550100"}
	accounts := fakeAccounts{"+15550100": acct}

	var gotAddr string
	var gotAcct *domain.Account
	h := Middleware(accounts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr = AddressFromContext(r.Context())
		gotAcct = AccountFromContext(r.Context())
	}))

	post := func(from string) *httptest.ResponseRecorder {
		form := url.Values{"From": {from}, "Body": {"hi"}}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := post("whatsapp:+15550100")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+15550100", gotAddr)
	assert.Equal(t, acct, gotAcct)

	w = post("whatsapp:+15550199")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+15550199", gotAddr)
	assert.Nil(t, gotAcct)

	w = post("nobody")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
