package fiber

// RecordViewRequest represents a single blog view
// @Description View recording DTO
type RecordViewRequest struct {
	BlogID      int64  `json:"blog_id" example:"7"`
	CountryCode string `json:"country_code" example:"US"`
	ViewerID    *int64 `json:"viewer_id,omitempty" example:"42"`
	Timestamp   int64  `json:"timestamp,omitempty" example:"1735725600"` // unix seconds, defaults to now
}

type RecordViewResponse struct {
	Status string `json:"status" example:"recorded"`
}

type BulkRecordViewsRequest struct {
	Views []RecordViewRequest `json:"views"`
}

type BulkRecordViewsResponse struct {
	Recorded int `json:"recorded"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_view"`
	Message string `json:"message,omitempty" example:"blog_id must be positive"`
}
