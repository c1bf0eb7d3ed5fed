package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTwilioSenderPostsForm(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "tok", From: "+14155238886", APIBase: srv.URL})
	if err := s.Send(context.Background(), "+2348012345678", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "tok" {
		t.Errorf("unexpected basic auth %q/%q", gotUser, gotPass)
	}
	if gotTo != "whatsapp:+2348012345678" || gotFrom != "whatsapp:+14155238886" {
		t.Errorf("unexpected addresses to=%q from=%q", gotTo, gotFrom)
	}
	if gotBody != "hello" {
		t.Errorf("unexpected body %q", gotBody)
	}
}

func TestTwilioSenderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"bad number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{AccountSID: "AC123", APIBase: srv.URL})
	err := s.Send(context.Background(), "+1", "hello")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestParseWhatsAppAddress(t *testing.T) {
	tests := map[string]string{
		"whatsapp:+2348012345678": "+2348012345678",
		"+15551234":               "+15551234",
		" whatsapp: +1555 ":       "+1555",
	}
	for in, want := range tests {
		if got := ParseWhatsAppAddress(in); got != want {
			t.Errorf("ParseWhatsAppAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
