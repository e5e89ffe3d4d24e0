package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestRefinerRefine(t *testing.T) {
	stub := &stubGenerator{response: "Dana is a final-year economics student with hands-on SQL experience."}
	refiner := NewRefiner(stub, zap.NewNop(), 0)

	req := &ai.BioRequest{
		CandidateName: "Dana Osei",
		Bio:           "im studying economics, know some sql",
		RoleTitle:     "Finance Intern",
		CompanyName:   "Acme Capital",
		Industries:    []string{"Finance"},
	}

	refined, err := refiner.Refine(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refined != stub.response {
		t.Fatalf("unexpected refined bio: %s", refined)
	}

	for _, fragment := range []string{"Dana Osei", "Finance Intern", "Acme Capital", "know some sql"} {
		if !strings.Contains(stub.lastPrompt, fragment) {
			t.Fatalf("expected prompt to contain %q, got: %s", fragment, stub.lastPrompt)
		}
	}
}

func TestRefinerEmptyBioIsNoop(t *testing.T) {
	stub := &stubGenerator{response: "should not be called"}
	refiner := NewRefiner(stub, zap.NewNop(), 0)

	refined, err := refiner.Refine(context.Background(), &ai.BioRequest{CandidateName: "Dana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refined != "" {
		t.Fatalf("expected empty result for empty bio, got %q", refined)
	}
	if stub.calls != 0 {
		t.Fatalf("generator must not be called for empty bio, got %d calls", stub.calls)
	}
}

func TestRefinerPropagatesGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	refiner := NewRefiner(stub, zap.NewNop(), 0)

	_, err := refiner.Refine(context.Background(), &ai.BioRequest{Bio: "some bio"})
	if err == nil {
		t.Fatal("expected error from failing generator")
	}
}

func TestRefinerStripsCodeFences(t *testing.T) {
	stub := &stubGenerator{response: "```text\nA polished bio.\n```"}
	refiner := NewRefiner(stub, zap.NewNop(), 0)

	refined, err := refiner.Refine(context.Background(), &ai.BioRequest{Bio: "raw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refined != "A polished bio." {
		t.Fatalf("expected fences stripped, got %q", refined)
	}
}
