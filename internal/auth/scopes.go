package auth

// OAuth scopes understood by the activity endpoints.
const (
	ScopeActivityWrite = "activity:write"
	ScopeActivityRead  = "activity:read"
)
