package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

type stubTransport struct {
	failures int
	calls    int
	lastSent Email
	err      error
}

func (s *stubTransport) Send(_ context.Context, e Email) error {
	s.calls++
	s.lastSent = e
	if s.calls <= s.failures {
		if s.err != nil {
			return s.err
		}
		return errors.New("relay unavailable")
	}
	return nil
}

func sampleContent() StageContent {
	return StageContent{
		Candidate: store.Candidate{
			ID:        "cand-1",
			FullName:  "Ana Silva",
			Location:  "london",
			Skills:    []string{"python", "sql"},
			Bio:       "Raw bio text.",
			StartDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		Role: store.Role{
			ID:         "role-1",
			Title:      "Marketing Intern",
			Industries: []string{"marketing"},
		},
		Company: store.Company{
			ID:           "comp-1",
			Name:         "Acme",
			ContactEmail: "hiring@acme.example",
		},
		Bio: "Refined bio text.",
	}
}

func TestComposeInitialStage(t *testing.T) {
	e, err := Compose(sampleContent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.To) != 1 || e.To[0] != "hiring@acme.example" {
		t.Errorf("unexpected recipients: %v", e.To)
	}
	if strings.HasPrefix(e.Subject, "Re:") {
		t.Errorf("initial stage must not be a reply subject: %q", e.Subject)
	}
	if e.InReplyTo != "" {
		t.Errorf("initial stage must not reference a prior message")
	}
	if e.MessageID == "" {
		t.Errorf("message id must be set")
	}
	if !strings.Contains(e.Body, "Refined bio text.") {
		t.Errorf("body should carry the refined bio:\n%s", e.Body)
	}
	if !strings.Contains(e.Body, "python, sql") {
		t.Errorf("body should list skills:\n%s", e.Body)
	}
}

func TestComposeFallsBackToRawBio(t *testing.T) {
	sc := sampleContent()
	sc.Bio = ""
	e, err := Compose(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(e.Body, "Raw bio text.") {
		t.Errorf("body should fall back to the raw bio:\n%s", e.Body)
	}
}

func TestComposeFollowUpThreadsUnderInitial(t *testing.T) {
	sc := sampleContent()
	sc.StageIdx = 2
	sc.InitialMessageID = "<initial@beyond-academy>"
	e, err := Compose(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(e.Subject, "Re:") {
		t.Errorf("follow-up subject should be a reply: %q", e.Subject)
	}
	if e.InReplyTo != sc.InitialMessageID {
		t.Errorf("follow-up should reference the initial message, got %q", e.InReplyTo)
	}
}

func TestComposeUrgentSubject(t *testing.T) {
	sc := sampleContent()
	sc.Urgent = true
	e, err := Compose(sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(e.Subject, "Time-sensitive") {
		t.Errorf("urgent subject not applied: %q", e.Subject)
	}
	if !strings.Contains(e.Body, "Ana has an early start date") {
		t.Errorf("urgent note missing from body:\n%s", e.Body)
	}
}

func TestComposeRejectsMissingContact(t *testing.T) {
	sc := sampleContent()
	sc.Company.ContactEmail = ""
	if _, err := Compose(sc); err == nil {
		t.Fatal("expected error for missing contact email")
	}
}

func TestSenderRetriesThenSucceeds(t *testing.T) {
	transport := &stubTransport{failures: 2}
	sender := NewSender(transport, 3, time.Millisecond, zap.NewNop())

	if err := sender.Send(context.Background(), Email{MessageID: "<m@x>"}); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if transport.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", transport.calls)
	}
}

func TestSenderGivesUpAfterBudget(t *testing.T) {
	relayErr := errors.New("550 rejected")
	transport := &stubTransport{failures: 10, err: relayErr}
	sender := NewSender(transport, 3, time.Millisecond, zap.NewNop())

	err := sender.Send(context.Background(), Email{MessageID: "<m@x>"})
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if !errors.Is(err, relayErr) {
		t.Errorf("final error should wrap the last transport error, got %v", err)
	}
	if transport.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", transport.calls)
	}
}

func TestSenderStopsOnCancelledContext(t *testing.T) {
	transport := &stubTransport{failures: 10}
	sender := NewSender(transport, 5, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, Email{MessageID: "<m@x>"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if transport.calls != 1 {
		t.Errorf("expected a single attempt before cancellation, got %d", transport.calls)
	}
}
