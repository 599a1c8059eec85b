package dto

// DeleteLogsRequest lists activity log ids to remove.
type DeleteLogsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteLogsResponse reports how many entries were removed.
type DeleteLogsResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}
