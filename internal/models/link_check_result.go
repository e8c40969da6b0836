package models

// LinkCheckResult is the outcome of probing one candidate URL.
// Redirect, Size and Location are nil when absent.
type LinkCheckResult struct {
	URL      string     `json:"url"`
	Status   StatusCode `json:"status"`
	Redirect *int       `json:"redirect,omitempty"`
	Size     *int64     `json:"size,omitempty"`
	Location *string    `json:"location,omitempty"`
}

// FailedResult builds a result carrying only a synthetic failure code.
func FailedResult(url string, status StatusCode) LinkCheckResult {
	return LinkCheckResult{URL: url, Status: status}
}
