package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/ai"
	"github.com/Erprabhat8423/beyond-academy/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Refiner rewrites candidate bios into polished outreach copy via Gemini.
type Refiner struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewRefiner(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Refiner {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refiner{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Refine returns a professional rewrite of the candidate's bio for the given
// role. An empty bio is returned unchanged; there is nothing to refine.
func (r *Refiner) Refine(ctx context.Context, req *ai.BioRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("bio request is required")
	}
	if strings.TrimSpace(req.Bio) == "" {
		return "", nil
	}

	prompt := buildPrompt(req)

	r.logger.Debug("gemini bio refinement request",
		zap.String("candidate_name", req.CandidateName),
		zap.String("role_title", req.RoleTitle),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	r.logger.Debug("gemini bio refinement response",
		zap.String("candidate_name", req.CandidateName),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	refined := stripFences(raw)
	if refined == "" {
		return "", fmt.Errorf("gemini returned an empty bio")
	}

	return refined, nil
}

func buildPrompt(req *ai.BioRequest) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Rewrite the following bio professionally:\n{{BIO}}"
	}

	industries := strings.Join(req.Industries, ", ")
	if industries == "" {
		industries = "general"
	}

	prompt := strings.ReplaceAll(template, "{{CANDIDATE_NAME}}", req.CandidateName)
	prompt = strings.ReplaceAll(prompt, "{{ROLE_TITLE}}", req.RoleTitle)
	prompt = strings.ReplaceAll(prompt, "{{COMPANY_NAME}}", req.CompanyName)
	prompt = strings.ReplaceAll(prompt, "{{INDUSTRIES}}", industries)
	prompt = strings.ReplaceAll(prompt, "{{BIO}}", req.Bio)
	return prompt
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.Trim(strings.TrimSpace(raw), "`")
}
