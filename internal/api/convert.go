package api

import (
	"time"

	"github.com/dustin/go-humanize"

	"autoxdcc/internal/download"
	"autoxdcc/internal/state"
	"autoxdcc/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromShow converts a stored subscription.
func FromShow(show state.Show) Show {
	return Show{
		Name:         show.Name,
		LastEpisode:  show.LastEpisode,
		Resolution:   show.Resolution,
		Subdirectory: show.Subdirectory,
		Archived:     show.Archived,
		CreatedAt:    formatTime(show.CreatedAt),
		UpdatedAt:    formatTime(show.UpdatedAt),
	}
}

// FromShows converts a list of subscriptions, preserving order.
func FromShows(shows []state.Show) []Show {
	out := make([]Show, 0, len(shows))
	for _, show := range shows {
		out = append(out, FromShow(show))
	}
	return out
}

// FromDownload converts a history row.
func FromDownload(d state.Download) Download {
	dto := Download{
		ID:         d.ID,
		Packlist:   d.Packlist,
		Bot:        d.Bot,
		Filename:   d.Filename,
		Show:       d.Show,
		Episode:    d.Episode,
		PackNumber: d.PackNumber,
		Size:       d.Size,
		Status:     d.Status,
		Error:      d.Error,
		CreatedAt:  formatTime(d.CreatedAt),
		UpdatedAt:  formatTime(d.UpdatedAt),
	}
	if d.Size > 0 {
		dto.SizeText = humanize.Bytes(uint64(d.Size))
	}
	return dto
}

// FromDownloads converts history rows, preserving order.
func FromDownloads(rows []state.Download) []Download {
	out := make([]Download, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDownload(row))
	}
	return out
}

// FromTask converts a scheduler task snapshot.
func FromTask(task download.Task) Task {
	dto := Task{
		ID:        task.ID,
		Type:      string(task.Type),
		Bot:       task.BotName,
		Label:     task.Label,
		Filename:  task.Filename(),
		Status:    string(task.Status),
		Size:      task.Size,
		CreatedAt: formatTime(task.CreatedAt),
		UpdatedAt: formatTime(task.UpdatedAt),
	}
	if task.Type == download.TypeRegular {
		dto.Pack = task.Item.PackNumber
	}
	return dto
}

// FromPacklistStatus converts one packlist snapshot.
func FromPacklistStatus(status workflow.PacklistStatus) PacklistStatus {
	dto := PacklistStatus{
		Name:           status.Name,
		Source:         status.Source,
		Bot:            status.Bot,
		Cursor:         status.Cursor,
		RefreshSeconds: int(status.RefreshInterval / time.Second),
		TimerActive:    status.TimerActive,
		Worker:         status.Worker,
		MaxConcurrent:  status.MaxConcurrent,
		Ongoing:        status.Ongoing,
		Awaiting:       status.Awaiting,
		LastRefresh:    formatTime(status.LastRefresh),
		LastError:      status.LastError,
	}
	for _, task := range status.Tasks {
		dto.Tasks = append(dto.Tasks, FromTask(task))
	}
	return dto
}

// FromStatusSummary converts the workflow summary.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	out := WorkflowStatus{
		Packlists: make([]PacklistStatus, 0, len(summary.Packlists)),
		InFlight:  summary.InFlight,
	}
	for _, pl := range summary.Packlists {
		out.Packlists = append(out.Packlists, FromPacklistStatus(pl))
	}
	return out
}
