package notify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database"
)

func testAlert() Alert {
	return Alert{
		SubjectName: "Alice Novak",
		CameraID:    "CAM01",
		EventTime:   time.Date(2025, 4, 29, 22, 15, 30, 0, time.UTC),
		Message:     "Alice Novak matched on camera CAM01 at 2025-04-29 22:15:30",
	}
}

func TestEmailSenderBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	s := NewEmailSender(config.SMTPConfig{
		Host: "mail.example.com", Port: 587,
		Username: "user", Password: "pass",
		From: "alerts@example.com",
	})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	rec := database.Recipient{ID: 1, Name: "Op", Email: "op@example.com"}
	if err := s.Send(context.Background(), rec, testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "alerts@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "op@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Security alert: Alice Novak detected") {
		t.Errorf("missing subject header in:\n%s", msg)
	}
	if !strings.Contains(msg, "matched on camera CAM01") {
		t.Errorf("missing body in:\n%s", msg)
	}
}

func TestEmailSenderRejectsMissingAddress(t *testing.T) {
	s := NewEmailSender(config.SMTPConfig{Host: "mail.example.com", Port: 587})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called")
		return nil
	}

	if err := s.Send(context.Background(), database.Recipient{ID: 3}, testAlert()); err == nil {
		t.Fatal("expected error for recipient without email")
	}
}

func TestEmailSenderPropagatesError(t *testing.T) {
	s := NewEmailSender(config.SMTPConfig{Host: "mail.example.com", Port: 587, From: "a@b"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	rec := database.Recipient{ID: 1, Email: "op@example.com"}
	if err := s.Send(context.Background(), rec, testAlert()); err == nil {
		t.Fatal("expected send error")
	}
}

func TestEmailSenderTimesOutOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept the connection and never send a greeting.
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-done
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	s := NewEmailSender(config.SMTPConfig{Host: host, Port: port, From: "alerts@example.com"})
	s.timeout = 100 * time.Millisecond

	rec := database.Recipient{ID: 1, Email: "op@example.com"}
	start := time.Now()
	if err := s.Send(context.Background(), rec, testAlert()); err == nil {
		t.Fatal("expected error from a server that never greets")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send took %v; the connection deadline should bound the exchange", elapsed)
	}
}

func TestSMSSenderPostsMessage(t *testing.T) {
	var gotPath, gotTo, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSMSSender(config.TwilioConfig{
		BaseURL: srv.URL, AccountSID: "AC123", AuthToken: "tok", From: "+15550100",
	})
	rec := database.Recipient{ID: 1, PhoneNumber: "+15550199"}
	if err := s.Send(context.Background(), rec, testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "tok" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotTo != "+15550199" {
		t.Errorf("to = %q", gotTo)
	}
	if !strings.Contains(gotBody, "Alice Novak") {
		t.Errorf("body = %q", gotBody)
	}
}

func TestVoiceSenderPostsCall(t *testing.T) {
	var gotPath, gotTwiml string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotTwiml = r.PostFormValue("Twiml")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewVoiceSender(config.TwilioConfig{
		BaseURL: srv.URL, AccountSID: "AC123", AuthToken: "tok", From: "+15550100",
	})
	rec := database.Recipient{ID: 1, PhoneNumber: "+15550199"}

	alert := testAlert()
	alert.Message = "Match for <Alice & Bob>"
	if err := s.Send(context.Background(), rec, alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Calls.json" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotTwiml, "<Response><Say>") {
		t.Errorf("twiml = %q", gotTwiml)
	}
	if !strings.Contains(gotTwiml, "&lt;Alice &amp; Bob&gt;") {
		t.Errorf("message not escaped: %q", gotTwiml)
	}
}

func TestTwilioAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code": 21211, "message": "Invalid 'To' number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSMSSender(config.TwilioConfig{BaseURL: srv.URL, AccountSID: "AC123", AuthToken: "tok"})
	rec := database.Recipient{ID: 1, PhoneNumber: "bogus"}

	err := s.Send(context.Background(), rec, testAlert())
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v; want status 400 mentioned", err)
	}
}

func TestSendersRejectMissingPhoneNumber(t *testing.T) {
	cfg := config.TwilioConfig{BaseURL: "http://unused.invalid", AccountSID: "AC1", AuthToken: "t"}
	senders := []ChannelSender{NewSMSSender(cfg), NewVoiceSender(cfg)}

	for _, s := range senders {
		if err := s.Send(context.Background(), database.Recipient{ID: 9}, testAlert()); err == nil {
			t.Errorf("%s: expected error for recipient without phone number", s.Channel())
		}
	}
}
