package auth

// Scopes checked by the HTTP API.
const (
	ScopeWorkoutsWrite = "workouts:write"
	ScopeWorkoutsRead  = "workouts:read"
	ScopeGroupsWrite   = "groups:write"
	ScopeGroupsRead    = "groups:read"
)
