package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestCreateMessage(t *testing.T) {
	var gotPath, gotBody, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		gotBody = r.PostForm.Get("Body")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid": "SM123", "status": "queued"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:    srv.URL,
		AccountSID: "AC-test",
		AuthToken:  "tok-test",
	})

	params := url.Values{}
	params.Set("From", "+15550001111")
	params.Set("To", "+15552223333")
	params.Set("Body", "hello")

	res, err := c.CreateMessage(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if res.SID != "SM123" || res.Status != "queued" {
		t.Errorf("unexpected resource: %+v", res)
	}
	if gotPath != "/Accounts/AC-test/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC-test" || gotPass != "tok-test" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotBody != "hello" {
		t.Errorf("body param = %q", gotBody)
	}
}

func TestCreateMessageCarrierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error_code": 21211, "error_message": "invalid 'To' number"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AccountSID: "AC-test", AuthToken: "tok"})
	_, err := c.CreateMessage(context.Background(), url.Values{})
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if cerr.Code != 21211 || cerr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("unexpected carrier error: %+v", cerr)
	}
}
