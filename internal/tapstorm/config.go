package tapstorm

import "time"

// Config holds configuration for a storm run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumUsers    int           // Number of simulated users
	TapsPerUser int           // Live taps fired per user
	OfflineTaps int           // Offline events replayed per user
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	LogFile     string        // Log file for storm output
	Verbose     bool          // Enable verbose logging
}

// stormUser carries the per-user state built during seeding.
type stormUser struct {
	UserID    string
	GoalID    string
	SessionID string
	Segment   string
}

// goalRequest mirrors the POST /goals body.
type goalRequest struct {
	Category    string `json:"category"`
	ItemID      string `json:"item_id"`
	Kind        string `json:"kind"`
	TargetCount int    `json:"target_count"`
	Segment     string `json:"segment"`
}

// sessionRequest mirrors the POST /sessions/start body.
type sessionRequest struct {
	GoalID   string `json:"goal_id"`
	Category string `json:"category"`
	ItemID   string `json:"item_id"`
	Segment  string `json:"segment"`
}

// sessionResponse is the subset of the session payload the storm needs.
type sessionResponse struct {
	ID string `json:"id"`
}

// tapRequest mirrors the POST /counter/tap body.
type tapRequest struct {
	SessionID string `json:"session_id"`
	Delta     int    `json:"delta"`
	Segment   string `json:"segment"`
}

// tapResponse is the subset of the tap payload the storm reads back.
type tapResponse struct {
	Value     int  `json:"value"`
	Suspected bool `json:"suspected"`
}

// syncEvent mirrors one entry of the POST /sync/offline batch.
type syncEvent struct {
	OfflineID string `json:"offline_id"`
	SessionID string `json:"session_id"`
	EventType string `json:"event_type"`
	Delta     int    `json:"delta"`
	Segment   string `json:"segment"`
}

type syncRequest struct {
	Events []syncEvent `json:"events"`
}

type syncResponse struct {
	Results []struct {
		OfflineID string `json:"offline_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

// reportResponse is the subset of GET /reports/daily the storm verifies.
type reportResponse struct {
	Date           string `json:"date"`
	TotalDhikr     int    `json:"total_dhikr_count"`
	HourlyActivity []int  `json:"hourly_activity"`
}

// Stats holds storm statistics.
type Stats struct {
	UsersSeeded      int
	TapsSubmitted    int
	TapsSuccessful   int
	TapsSuspected    int
	TapsFailed       int
	OfflineSynced    int
	OfflineDuplicate int
	OfflineFailed    int
	ReportsVerified  int
	ReportMismatches int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
