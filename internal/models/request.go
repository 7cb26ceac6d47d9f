package models

type SubmitEditRequest struct {
	// Free-text description of the requested design change.
	UserInput string `json:"user_input" binding:"required" example:"increase the train head length by 1 meter"`
}

type CreateSessionRequest struct {
	Name        string `json:"name" binding:"required" example:"Streamlined variant"`
	Description string `json:"description,omitempty"`
}

type HistoryQuery struct {
	Limit     int   `form:"limit,default=50"`
	SessionID int64 `form:"session_id"`
}
