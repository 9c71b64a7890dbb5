package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Anthonytesla02/Level-Up/internal/model"
)

// Errors for rejected replies.
var (
	ErrMalformedReply = errors.New("malformed generation reply")
	ErrOutOfBand      = errors.New("xp reward outside difficulty band")
)

type penaltyPayload struct {
	Type   string `json:"type" validate:"required,oneof=credits xp"`
	Amount *int64 `json:"amount" validate:"required,min=0"`
}

type taskPayload struct {
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description" validate:"required,max=2000"`
	Category         string          `json:"category" validate:"required,max=64"`
	Difficulty       string          `json:"difficulty"`
	ProofType        string          `json:"proofType" validate:"required,oneof=photo text"`
	XPReward         *int64          `json:"xpReward" validate:"required"`
	AIRecommendation string          `json:"aiRecommendation" validate:"max=1000"`
	FailurePenalty   *penaltyPayload `json:"failurePenalty" validate:"omitempty"`
}

// trim strips surrounding whitespace so blank strings fail "required".
func (p *taskPayload) trim() {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.TrimSpace(p.Category)
	p.ProofType = strings.TrimSpace(p.ProofType)
	p.AIRecommendation = strings.TrimSpace(p.AIRecommendation)
	if p.FailurePenalty != nil {
		p.FailurePenalty.Type = strings.TrimSpace(p.FailurePenalty.Type)
	}
}

// parseReply decodes a reply shaped as {"tasks": [...]}, {"challenge": {...}}
// or a bare task object, validates every item, and converts them to drafts
// of difficulty d. Any invalid item rejects the whole reply.
func parseReply(v *validator.Validate, content string, d model.Difficulty) ([]model.TaskDraft, error) {
	content = strings.TrimSpace(content)

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	var items []taskPayload
	switch {
	case envelope["tasks"] != nil:
		if err := json.Unmarshal(envelope["tasks"], &items); err != nil {
			return nil, fmt.Errorf("%w: tasks: %v", ErrMalformedReply, err)
		}
	case envelope["challenge"] != nil:
		var one taskPayload
		if err := json.Unmarshal(envelope["challenge"], &one); err != nil {
			return nil, fmt.Errorf("%w: challenge: %v", ErrMalformedReply, err)
		}
		items = []taskPayload{one}
	default:
		var one taskPayload
		if err := json.Unmarshal([]byte(content), &one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		items = []taskPayload{one}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrMalformedReply)
	}

	band := model.BandFor(d)
	drafts := make([]model.TaskDraft, 0, len(items))
	for i, item := range items {
		item.trim()
		if err := v.Struct(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedReply, i, err)
		}
		if !band.Contains(*item.XPReward) {
			return nil, fmt.Errorf("%w: item %d: %d not in [%d,%d]", ErrOutOfBand, i, *item.XPReward, band.Min, band.Max)
		}

		penalty := model.DefaultPenaltyFor(d)
		if item.FailurePenalty != nil {
			penalty = model.Penalty{
				Type:   model.PenaltyType(item.FailurePenalty.Type),
				Amount: *item.FailurePenalty.Amount,
			}
		}
		var rec *string
		if r := item.AIRecommendation; r != "" {
			rec = &r
		}

		drafts = append(drafts, model.TaskDraft{
			Title:            item.Title,
			Description:      item.Description,
			Category:         item.Category,
			Difficulty:       d,
			ProofType:        model.ProofType(item.ProofType),
			XPReward:         *item.XPReward,
			CreatedBy:        model.CreatedByAI,
			AIRecommendation: rec,
			FailurePenalty:   &penalty,
		})
	}
	return drafts, nil
}
