package ipc

import (
	"autoxdcc/internal/api"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

// serviceName is the JSON-RPC receiver name.
const serviceName = "Axdcc"

// StartRequest requests the daemon to start processing.
type StartRequest struct{}

// StartResponse reports whether the daemon started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest requests the daemon to stop processing.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest requests the daemon status.
type StatusRequest struct{}

// StatusResponse carries the daemon status.
type StatusResponse struct {
	api.DaemonStatus
}

// EventResponse reports how a transfer event was reconciled.
type EventResponse struct {
	Matched     bool   `json:"matched"`
	Action      string `json:"action"`
	Packlist    string `json:"packlist,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Status      string `json:"status,omitempty"`
	Destination string `json:"destination,omitempty"`
	Cursor      int    `json:"cursor,omitempty"`
}

func fromEventResult(result workflow.EventResult) EventResponse {
	return EventResponse{
		Matched:     result.Matched,
		Action:      string(result.Action),
		Packlist:    result.Packlist,
		TaskID:      result.TaskID,
		Status:      string(result.Status),
		Destination: result.Destination,
		Cursor:      result.Cursor,
	}
}

// CommandsRequest collects pending chat commands.
type CommandsRequest struct {
	Max        int `json:"max"`
	WaitMillis int `json:"wait_millis"`
}

// CommandsResponse carries drained commands in sequence order.
type CommandsResponse struct {
	Commands []transport.Command `json:"commands"`
}

// ShowListRequest lists active or archived shows.
type ShowListRequest struct {
	Archived bool   `json:"archived"`
	Query    string `json:"query,omitempty"`
}

// ShowListResponse carries the listed shows.
type ShowListResponse struct {
	Shows []api.Show `json:"shows"`
}

// ShowRequest names a show, possibly partially.
type ShowRequest struct {
	Name string `json:"name"`
}

// ShowResponse carries the outcome of a show change.
type ShowResponse struct {
	api.ShowChange
}

// PacklistRequest names a packlist.
type PacklistRequest struct {
	Name string `json:"name"`
}

// PacklistResponse acknowledges a packlist operation.
type PacklistResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// PacklistTimerRequest changes a packlist refresh timer.
type PacklistTimerRequest struct {
	Name            string `json:"name"`
	Off             bool   `json:"off"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
}

// PacklistTimerResponse reports the interval in effect; zero means off.
type PacklistTimerResponse struct {
	Name            string `json:"name"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// BotRequest names a packlist and, for trust edits, a bot.
type BotRequest struct {
	Packlist string `json:"packlist"`
	Nick     string `json:"nick,omitempty"`
}

// BotResponse lists the trusted bots of a packlist after the operation.
type BotResponse struct {
	Packlist string   `json:"packlist"`
	Bots     []string `json:"bots"`
	Changed  bool     `json:"changed"`
}

// BotGetRequest asks a bot for one pack directly.
type BotGetRequest struct {
	Bot  string `json:"bot"`
	Pack int    `json:"pack"`
}

// BotGetResponse acknowledges a queued pack request.
type BotGetResponse struct {
	Message string `json:"message"`
}

// DownloadClearRequest drops the in-flight set.
type DownloadClearRequest struct{}

// DownloadClearResponse reports how many entries were dropped.
type DownloadClearResponse struct {
	Cleared int `json:"cleared"`
}

// DownloadHistoryRequest reads transfer history.
type DownloadHistoryRequest struct {
	Packlist string `json:"packlist,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// DownloadHistoryResponse carries history rows, newest first.
type DownloadHistoryResponse struct {
	Downloads []api.Download `json:"downloads"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest reads the daemon log. A negative offset returns the last
// Limit lines.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Match      string `json:"match,omitempty"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
