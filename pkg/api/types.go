package api

import "time"

// StatusResponse is the complete observable state of the engine: the weekly
// balance, the streak, today's degraded-data advisory and the per-app
// blocking states.
type StatusResponse struct {
	CreditsRemaining int         `json:"credits_remaining"`
	CurrentStreak    int         `json:"current_streak"`
	LongestStreak    int         `json:"longest_streak"`
	UsageDegraded    bool        `json:"usage_degraded"`
	TotalUsage       int         `json:"total_usage"`
	Apps             []AppStatus `json:"apps"`
}

// AppStatus is one monitored app's standing for today
type AppStatus struct {
	AppID        string `json:"app_id"`
	DisplayName  string `json:"display_name"`
	LimitMinutes int    `json:"limit_minutes"`
	State        string `json:"state"`
}

// TransactionEntry is one ledger entry of the current week
type TransactionEntry struct {
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	AppID     string    `json:"app_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DistractionEntry is one row of today's filtered usage ranking
type DistractionEntry struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// AddAppRequest registers an app for monitoring
type AddAppRequest struct {
	AppID        string `json:"app_id"`
	DisplayName  string `json:"display_name"`
	LimitMinutes int    `json:"limit_minutes"`
}

// ExtendRequest raises an app's limit for the rest of today
type ExtendRequest struct {
	LimitMinutes int `json:"limit_minutes"`
}

// UsageRequest feeds a locally tracked usage estimate
type UsageRequest struct {
	AppID   string `json:"app_id"`
	Minutes int    `json:"minutes"`
}
