package models

// Requests for profile HTTP endpoints. Defined in domain for consistency and reuse.

type ProfileRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Levels bool   `query:"levels" json:"levels"`
}

type NakedRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type CountersRequest struct {
	Symbol            string `json:"symbol" validate:"required"`
	DailyPositions    int    `json:"daily_positions" validate:"gte=0"`
	ConsecutiveLosses int    `json:"consecutive_losses" validate:"gte=0"`
}
