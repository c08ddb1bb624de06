package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func siteverifyStub(t *testing.T, acceptToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("secret") == "" {
			t.Error("secret missing from siteverify request")
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("response") == acceptToken {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
}

func TestCaptchaClient_Check(t *testing.T) {
	srv := siteverifyStub(t, "good-token")
	defer srv.Close()
	c := NewCaptchaClient("secret", srv.URL)

	if err := c.Check(context.Background(), "good-token"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := c.Check(context.Background(), "bad-token"); err == nil {
		t.Error("invalid token accepted")
	}
}

func TestCaptchaClient_NoSecret(t *testing.T) {
	c := NewCaptchaClient("", "http://unused.invalid")
	if err := c.Check(context.Background(), "tok"); err == nil {
		t.Error("check without a secret should fail")
	}
}

func TestCaptchaWidget_ConsumesOneTokenPerVerify(t *testing.T) {
	srv := siteverifyStub(t, "good-token")
	defer srv.Close()

	bag := NewTokenBag()
	w := NewCaptchaWidget(NewCaptchaClient("secret", srv.URL), func() string { return bag.Take("flow-1") })

	if err := w.Verify(context.Background()); err != ErrNoToken {
		t.Fatalf("verify without token err = %v, want ErrNoToken", err)
	}
	bag.Put("flow-1", "good-token")
	if err := w.Verify(context.Background()); err != nil {
		t.Fatalf("verify with token: %v", err)
	}
	// The token is spent; a second attempt needs a fresh one.
	if err := w.Verify(context.Background()); err != ErrNoToken {
		t.Errorf("second verify err = %v, want ErrNoToken", err)
	}
}
