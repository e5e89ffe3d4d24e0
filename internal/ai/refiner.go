package ai

import "context"

// BioRequest carries everything the refiner needs to rewrite a candidate bio
// for a specific role pitch.
type BioRequest struct {
	CandidateName string
	Bio           string
	RoleTitle     string
	CompanyName   string
	Industries    []string
}

// Refiner produces a polished candidate bio for outreach copy. A failing
// refiner must never block a send: callers fall back to the raw bio.
type Refiner interface {
	Refine(ctx context.Context, req *BioRequest) (string, error)
}
