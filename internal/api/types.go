package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Show describes a subscription in a transport-friendly format.
type Show struct {
	Name         string `json:"name"`
	LastEpisode  *int   `json:"lastEpisode,omitempty"`
	Resolution   int    `json:"resolution"`
	Subdirectory string `json:"subdirectory,omitempty"`
	Archived     bool   `json:"archived"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// ShowRequest adds a show or changes an existing one. For updates, Name may
// be a partial match and nil fields are left untouched. A Directory of "/"
// moves the show back to the download root.
type ShowRequest struct {
	Name       string  `json:"name" validate:"required,max=256"`
	Episode    *int    `json:"episode,omitempty" validate:"omitempty,gte=0"`
	Resolution string  `json:"resolution,omitempty" validate:"omitempty,resolution"`
	Directory  *string `json:"directory,omitempty" validate:"omitempty,max=256"`
}

// ShowChange reports the outcome of a show operation.
type ShowChange struct {
	Show    Show     `json:"show"`
	Changes []string `json:"changes,omitempty"`
}

// Download describes one history row.
type Download struct {
	ID         string `json:"id"`
	Packlist   string `json:"packlist"`
	Bot        string `json:"bot"`
	Filename   string `json:"filename"`
	Show       string `json:"show,omitempty"`
	Episode    int    `json:"episode,omitempty"`
	PackNumber int    `json:"packNumber"`
	Size       int64  `json:"size"`
	SizeText   string `json:"sizeText,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// Task describes a scheduled transfer.
type Task struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Bot       string `json:"bot"`
	Label     string `json:"label"`
	Filename  string `json:"filename"`
	Pack      int    `json:"pack,omitempty"`
	Status    string `json:"status"`
	Size      int64  `json:"size,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// PacklistStatus summarizes one packlist scheduler.
type PacklistStatus struct {
	Name           string `json:"name"`
	Source         string `json:"source"`
	Bot            string `json:"bot"`
	Cursor         int    `json:"cursor"`
	RefreshSeconds int    `json:"refreshSeconds"`
	TimerActive    bool   `json:"timerActive"`
	Worker         string `json:"worker"`
	MaxConcurrent  int    `json:"maxConcurrent"`
	Ongoing        int    `json:"ongoing"`
	Awaiting       int    `json:"awaiting"`
	LastRefresh    string `json:"lastRefresh,omitempty"`
	LastError      string `json:"lastError,omitempty"`
	Tasks          []Task `json:"tasks,omitempty"`
}

// WorkflowStatus summarizes every packlist.
type WorkflowStatus struct {
	Packlists []PacklistStatus `json:"packlists"`
	InFlight  int              `json:"inFlight"`
}

// StatusLine is a labelled health line rendered by status views.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
	APIAddress    string         `json:"apiAddress,omitempty"`
	Workflow      WorkflowStatus `json:"workflow"`
	DownloadStats map[string]int `json:"downloadStats"`
	PendingOutbox int            `json:"pendingOutbox"`
	Checks        []StatusLine   `json:"checks,omitempty"`
}
