package dto

import "time"

type VoteRequest struct {
	ReceiverID int64   `json:"receiver_id"`
	Message    string  `json:"message"`
	TagIDs     []int64 `json:"tag_ids,omitempty"`
}

type VoteItem struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"sender_id"`
	ReceiverID    int64     `json:"receiver_id"`
	Message       string    `json:"message"`
	PointsAwarded int       `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

type VoteResponse struct {
	OK             bool     `json:"ok"`
	Vote           VoteItem `json:"vote"`
	QuotaRemaining int      `json:"quota_remaining"`
	IsReciprocal   bool     `json:"is_reciprocal"`
}

type VoteListResponse struct {
	Items []VoteItem `json:"items"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Total int        `json:"total"`
}

type QuotaResponse struct {
	Balance     int       `json:"balance"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type ExportRequest struct {
	Month string `json:"month"`
}

type ExportResponse struct {
	OK        bool   `json:"ok"`
	ObjectKey string `json:"object_key"`
	Rows      int    `json:"rows"`
}
