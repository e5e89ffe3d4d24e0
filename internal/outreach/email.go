// Package outreach owns email composition and delivery for campaign cycles.
// The transport is the sole authority on whether a stage transition to a
// *_SENT state is permitted.
package outreach

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// Email is a single outbound message.
type Email struct {
	To        []string
	Subject   string
	Body      string
	MessageID string
	// InReplyTo carries the initial message id so follow-ups thread under
	// the first email in the recipient's client.
	InReplyTo string
}

// StageContent is the input for composing one stage email.
type StageContent struct {
	Candidate store.Candidate
	Role      store.Role
	Company   store.Company
	// Bio is the refined candidate bio, or the raw one when refinement
	// degraded.
	Bio      string
	Urgent   bool
	StageIdx int
	// InitialMessageID threads follow-ups; empty for the initial stage.
	InitialMessageID string
}

// NewMessageID returns an RFC 5322 message id for an outbound email.
func NewMessageID() string {
	return fmt.Sprintf("<%s@beyond-academy>", uuid.NewString())
}

// NewThreadID returns an opaque id grouping all stage emails of one cycle.
func NewThreadID() string {
	return uuid.NewString()
}

var stageIntros = [4]string{
	"I wanted to introduce an outstanding candidate for your %s opening.",
	"I wanted to follow up on the candidate I shared for your %s opening.",
	"Checking in once more on the candidate proposed for your %s opening.",
	"This is my final note regarding the candidate for your %s opening.",
}

// Compose builds the stage email for a cycle. Urgent cycles get a sharper
// subject line; the cadence itself never changes with urgency.
func Compose(sc StageContent) (Email, error) {
	if sc.StageIdx < 0 || sc.StageIdx >= len(stageIntros) {
		return Email{}, fmt.Errorf("stage index %d out of range", sc.StageIdx)
	}
	if strings.TrimSpace(sc.Company.ContactEmail) == "" {
		return Email{}, fmt.Errorf("company %s has no contact email", sc.Company.ID)
	}

	industry := "your industry"
	if len(sc.Role.Industries) > 0 {
		industry = sc.Role.Industries[0]
	}

	subject := fmt.Sprintf("Outstanding intern available - %s", industry)
	if sc.Urgent {
		subject = fmt.Sprintf("Time-sensitive intern placement - %s", industry)
	}
	if sc.StageIdx > 0 {
		subject = "Re: " + subject
	}

	greetName := sc.Company.Name
	if greetName == "" {
		greetName = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetName)
	fmt.Fprintf(&b, stageIntros[sc.StageIdx], sc.Role.Title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s\n", candidateSummary(sc))
	if sc.Urgent {
		fmt.Fprintf(&b, "\n%s has an early start date, so a quick decision would make all the difference.\n", firstName(sc.Candidate.FullName))
	}
	b.WriteString("\nWould you be open to a short call this week?\n\nBest regards\n")

	return Email{
		To:        []string{sc.Company.ContactEmail},
		Subject:   subject,
		Body:      b.String(),
		MessageID: NewMessageID(),
		InReplyTo: sc.InitialMessageID,
	}, nil
}

func candidateSummary(sc StageContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", sc.Candidate.FullName, sc.Role.Title)
	if sc.Candidate.Location != "" {
		fmt.Fprintf(&b, " (%s", sc.Candidate.Location)
		if sc.Candidate.WorkPolicy != "" {
			fmt.Fprintf(&b, ", %s", sc.Candidate.WorkPolicy)
		}
		b.WriteString(")")
	}
	b.WriteString("\n")

	bio := strings.TrimSpace(sc.Bio)
	if bio == "" {
		bio = strings.TrimSpace(sc.Candidate.Bio)
	}
	if bio != "" {
		fmt.Fprintf(&b, "\n%s\n", bio)
	}

	if len(sc.Candidate.Skills) > 0 {
		fmt.Fprintf(&b, "\nKey skills: %s\n", strings.Join(sc.Candidate.Skills, ", "))
	}
	if !sc.Candidate.StartDate.IsZero() {
		fmt.Fprintf(&b, "Available from: %s\n", sc.Candidate.StartDate.Format("2 January 2006"))
	}
	return b.String()
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return "The candidate"
	}
	if idx := strings.IndexByte(full, ' '); idx > 0 {
		return full[:idx]
	}
	return full
}
