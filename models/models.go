package models

// Wire-level types shared by the sync pipeline and the HTTP surface.

// DateRange is the window a sync run queried, as calendar dates.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SyncStats is the statistics block of a sync response.
type SyncStats struct {
	TotalFetched      int       `json:"totalFetched"`
	OpenTenders       int       `json:"openTenders"`
	SuccessfulUpserts int       `json:"successfulUpserts"`
	Errors            int       `json:"errors"`
	PagesProcessed    int       `json:"pagesProcessed"`
	APICallsMade      int       `json:"apiCallsMade"`
	ConsecutiveErrors int       `json:"consecutiveErrors"`
	ExecutionTimeMs   int64     `json:"executionTimeMs"`
	DateRange         DateRange `json:"dateRange"`
	RecordsPerAPICall float64   `json:"recordsPerApiCall"`
	RecordsPerSecond  float64   `json:"recordsPerSecond"`
}

// SyncResponse is the orchestrator invocation contract. On hard failure
// Success is false, Error is set and Stats is zeroed.
type SyncResponse struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	SyncType      string    `json:"syncType,omitempty"`
	Stats         SyncStats `json:"stats"`
	IndexingError string    `json:"indexingError,omitempty"`
}

// APIError carries an actionable message for expected failures.
type APIError struct {
	Message string `json:"message"`
}

// APIResponse is the envelope for auxiliary operations: callers branch on
// the presence of Error instead of catching exceptions.
type APIResponse struct {
	Data  interface{} `json:"data"`
	Error *APIError   `json:"error,omitempty"`
}

// ViewResult is returned by the view-increment operation.
type ViewResult struct {
	Success   bool `json:"success"`
	ViewCount int  `json:"viewCount"`
	Counted   bool `json:"counted"`
}

// BookmarkResult is returned by bookmark add/remove.
type BookmarkResult struct {
	Success    bool   `json:"success"`
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message,omitempty"`
}
