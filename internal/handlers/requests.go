package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/M-Shameel-375/skill-verse-sub001/internal/domain"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// TimeWindowDTO is one availability interval in an inbound payload.
type TimeWindowDTO struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// PublishOfferRequest defines the DTO for publishing a skill offer.
type PublishOfferRequest struct {
	SkillName        string          `json:"skillName" validate:"required"`
	ProficiencyLevel int             `json:"proficiencyLevel" validate:"required,min=1,max=5"`
	Availability     []TimeWindowDTO `json:"availability" validate:"dive"`
}

// PublishRequestRequest defines the DTO for publishing a skill request.
type PublishRequestRequest struct {
	SkillName          string          `json:"skillName" validate:"required"`
	DesiredProficiency int             `json:"desiredProficiency" validate:"required,min=1,max=5"`
	Availability       []TimeWindowDTO `json:"availability" validate:"dive"`
}

// ProposeRequest defines the DTO for proposing a session from a candidate pair.
type ProposeRequest struct {
	RequestID string `json:"requestId" validate:"required"`
	OfferID   string `json:"offerId" validate:"required"`
}

// CancelRequest defines the DTO for cancelling a session.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

func toWindows(dtos []TimeWindowDTO) []domain.TimeWindow {
	windows := make([]domain.TimeWindow, len(dtos))
	for i, dto := range dtos {
		windows[i] = domain.TimeWindow{Start: dto.Start, End: dto.End}
	}
	return windows
}
