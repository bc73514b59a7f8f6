package models

// Requests for risk analytics HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Days          int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
	IncludeTrends string `query:"include_trends" json:"include_trends" default:"true" validate:"oneof=true false"`
}

type TrendRequest struct {
	StartDate string `query:"start_date" json:"start_date"`
	EndDate   string `query:"end_date" json:"end_date"`
	Metrics   string `query:"metrics" json:"metrics" default:"transaction_count,total_amount,avg_risk"`
}

type AnomalyRequest struct {
	StartDate string  `query:"start_date" json:"start_date"`
	EndDate   string  `query:"end_date" json:"end_date"`
	Threshold float64 `query:"threshold" json:"threshold" default:"2.0" validate:"gte=0,lte=10"`
}

type PredictRequest struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	Hour        *int    `json:"hour" validate:"omitempty,gte=0,lte=23"`
	DayOfWeek   *int    `json:"day_of_week" validate:"omitempty,gte=0,lte=6"`
	Description string  `json:"description" validate:"max=500"`
}

type OverviewRequest struct {
	Days int `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}
