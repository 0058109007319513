package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/models"
	"sisu-notifier/internal/report"
)

func sampleReport() report.Report {
	email := "ada@example.com"
	return report.Build([]models.ClosingMatch{
		{BuyerName: "Ada Lovelace", Email: &email, ClosingDate: "2025-12-08", DaysUntil: 10},
		{BuyerName: "Alan Turing", ClosingDate: "2025-11-29", DaysUntil: 1},
	}, report.Options{WindowDays: 15})
}

// stubChannel records how often it was asked to send.
type stubChannel struct {
	name    string
	enabled bool
	err     error
	sent    int
}

func (s *stubChannel) Name() string    { return s.name }
func (s *stubChannel) IsEnabled() bool { return s.enabled }
func (s *stubChannel) Send(ctx context.Context, r report.Report) error {
	s.sent++
	return s.err
}

func TestMultiNotifier_Delivered(t *testing.T) {
	a := &stubChannel{name: "a", enabled: true}
	b := &stubChannel{name: "b", enabled: false}
	mn := NewMultiNotifier(zerolog.Nop(), a, b)

	outcome, err := mn.Dispatch(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 0, b.sent)
	assert.Equal(t, []string{"a"}, mn.Channels())
}

func TestMultiNotifier_AllSkipped(t *testing.T) {
	mn := NewMultiNotifier(zerolog.Nop(), &stubChannel{name: "a"})

	outcome, err := mn.Dispatch(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestMultiNotifier_EmptyReportNeverSent(t *testing.T) {
	a := &stubChannel{name: "a", enabled: true}
	mn := NewMultiNotifier(zerolog.Nop(), a)

	outcome, err := mn.Dispatch(context.Background(), report.Build(nil, report.Options{WindowDays: 15}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, a.sent)
}

func TestMultiNotifier_FailureIsDeliveryError(t *testing.T) {
	ok := &stubChannel{name: "ok", enabled: true}
	bad := &stubChannel{name: "smtp", enabled: true, err: errors.New("connection refused")}
	mn := NewMultiNotifier(zerolog.Nop())
	mn.AddChannel(bad)
	mn.AddChannel(ok)

	outcome, err := mn.Dispatch(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.True(t, errors.Is(err, errors.ErrDeliveryFailed))

	var de *errors.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "smtp", de.Channel)
	assert.Equal(t, 1, ok.sent)
}

func TestNoOpNotifier(t *testing.T) {
	outcome, err := NewNoOpNotifier().Dispatch(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestEmailNotifier_SkippedWhenUnconfigured(t *testing.T) {
	cases := []EmailConfig{
		{Port: 465, Username: "u", Password: "p", To: []string{"a@example.com"}},
		{Host: "smtp.example.com", Port: 465, Password: "p", To: []string{"a@example.com"}},
		{Host: "smtp.example.com", Port: 465, Username: "u", To: []string{"a@example.com"}},
		{Host: "smtp.example.com", Port: 465, Username: "u", Password: "p"},
	}
	for _, cfg := range cases {
		e := NewEmailNotifier(cfg)
		called := false
		e.send = func(string, smtp.Auth, string, []string, []byte) error {
			called = true
			return nil
		}
		assert.False(t, e.IsEnabled())
		assert.NoError(t, e.Send(context.Background(), sampleReport()))
		assert.False(t, called)
	}
}

func TestEmailNotifier_BuildsMultipartMessage(t *testing.T) {
	e := NewEmailNotifier(EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "notifier@example.com",
		Password: "secret",
		To:       []string{"grant@example.com", "ops@example.com"},
	})
	e.now = func() time.Time { return time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var raw []byte
	e.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, raw = addr, from, to, msg
		return nil
	}

	r := sampleReport()
	require.NoError(t, e.Send(context.Background(), r))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "notifier@example.com", gotFrom)
	assert.Equal(t, []string{"grant@example.com", "ops@example.com"}, gotTo)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, r.Subject, subject)
	assert.Contains(t, msg.Header.Get("From"), "SISU Notifier")
	assert.Equal(t, "grant@example.com, ops@example.com", msg.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types, bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, strings.ReplaceAll(string(body), "\r\n", "\n"))
	}
	require.Len(t, types, 2)
	assert.True(t, strings.HasPrefix(types[0], "text/plain"))
	assert.True(t, strings.HasPrefix(types[1], "text/html"))
	assert.Equal(t, r.Text, bodies[0])
	assert.Equal(t, r.HTML, bodies[1])
}

func TestEmailNotifier_TransportError(t *testing.T) {
	e := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", Port: 465, Username: "u", Password: "p", To: []string{"a@example.com"}})
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("dial tcp: refused")
	}
	mn := NewMultiNotifier(zerolog.Nop(), e)

	outcome, err := mn.Dispatch(context.Background(), sampleReport())
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.True(t, errors.Is(err, errors.ErrDeliveryFailed))
}

func TestWebhookNotifier_PostsReport(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, time.Second)
	require.True(t, w.IsEnabled())
	require.NoError(t, w.Send(context.Background(), sampleReport()))

	assert.Equal(t, "closing_report", got.Type)
	assert.Equal(t, "high", got.Urgency)
	assert.Equal(t, 15, got.WindowDays)
	require.Len(t, got.Matches, 2)
	assert.Equal(t, "Alan Turing", got.Matches[0].BuyerName)
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, time.Second).Send(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_DisabledWithoutURL(t *testing.T) {
	w := NewWebhookNotifier("", 0)
	assert.False(t, w.IsEnabled())
	assert.NoError(t, w.Send(context.Background(), sampleReport()))
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotifier(&buf, true)
	r := sampleReport()

	require.NoError(t, c.Send(context.Background(), r))
	assert.Contains(t, buf.String(), "Subject: "+r.Subject)
	assert.Contains(t, buf.String(), "Alan Turing closes tomorrow")

	assert.False(t, NewConsoleNotifier(nil, true).IsEnabled())
	assert.Equal(t, "No closings within the window.\n", FormatPreview(report.Report{}))
}
