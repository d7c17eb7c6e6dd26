package httpapi

// errorBody is the short JSON error object returned for failed API calls.
type errorBody struct {
	Error string `json:"error"`
}

// refreshSymbolsResponse is the body of POST /v1/admin/symbols/refresh.
type refreshSymbolsResponse struct {
	OK      bool     `json:"ok"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
