// Package identity maps transport addresses to accounts.
package identity

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/classmate/internal/domain"
	"github.com/ashureev/classmate/internal/messaging"
	"github.com/ashureev/classmate/internal/store"
)

// AddressField is the form field carrying the sender of a webhook.
const AddressField = "From"

type contextKey int

const (
	addressKey contextKey = iota
	accountKey
)

// ErrInvalidAddress is returned for an address that is not a phone number.
var ErrInvalidAddress = errors.New("invalid address")

var addressPattern = regexp.MustCompile(`^\+?[0-9]{5,20}$`)

// Accounts is the lookup a Resolver needs.
type Accounts interface {
	GetAccountByAddress(ctx context.Context, address string) (*domain.Account, error)
}

// NormalizeAddress strips the channel prefix and separators from a sender
// address.
func NormalizeAddress(raw string) (string, error) {
	addr := messaging.ParseWhatsAppAddress(raw)
	addr = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(addr)
	if !addressPattern.MatchString(addr) {
		return "", ErrInvalidAddress
	}
	return addr, nil
}

// Resolve returns the normalized address and its account. The account is
// nil when the address is not registered.
func Resolve(ctx context.Context, accounts Accounts, raw string) (string, *domain.Account, error) {
	addr, err := NormalizeAddress(raw)
	if err != nil {
		return "", nil, err
	}
	acct, err := accounts.GetAccountByAddress(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return addr, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return addr, acct, nil
}

// AddressFromContext returns the sender address resolved by Middleware.
func AddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(addressKey).(string); ok {
		return v
	}
	return ""
}

// AccountFromContext returns the sender's account, or nil for an unknown
// sender.
func AccountFromContext(ctx context.Context) *domain.Account {
	if v, ok := ctx.Value(accountKey).(*domain.Account); ok {
		return v
	}
	return nil
}

// WithAccount stores an address and account in ctx.
func WithAccount(ctx context.Context, address string, acct *domain.Account) context.Context {
	ctx = context.WithValue(ctx, addressKey, address)
	return context.WithValue(ctx, accountKey, acct)
}

// Middleware resolves the form sender of a webhook request and injects the
// address and account into the request context.
func Middleware(accounts Accounts) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, acct, err := Resolve(r.Context(), accounts, r.FormValue(AddressField))
			if errors.Is(err, ErrInvalidAddress) {
				http.Error(w, `{"error":"invalid sender address"}`, http.StatusBadRequest)
				return
			}
			if err != nil {
				http.Error(w, `{"error":"failed to resolve sender"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), addr, acct)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
