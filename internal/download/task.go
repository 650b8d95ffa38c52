package download

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoxdcc/internal/packlist"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusAwaiting  Status = "AWAITING"
	StatusRequested Status = "REQUESTED"
	StatusConnected Status = "CONNECTED"
	StatusComplete  Status = "COMPLETE"
	StatusAborted   Status = "ABORTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusAborted
}

// Active reports whether the task occupies the transport.
func (s Status) Active() bool {
	return s == StatusRequested || s == StatusConnected
}

// TaskType distinguishes pack downloads from packlist requests.
type TaskType string

const (
	TypeRegular     TaskType = "regular"
	TypeListRequest TaskType = "list"
)

// Task is a point-in-time copy of a scheduled transfer.
type Task struct {
	ID               string
	BotName          string
	Item             packlist.Item
	Label            string
	Type             TaskType
	Status           Status
	Size             int64
	ObservedFilename string
	Address          string
	LocalPath        string
	Key              string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	done *completion
}

// Filename is the name the task was requested under.
func (t Task) Filename() string {
	if t.Type == TypeListRequest {
		return t.Label
	}
	return t.Item.Filename
}

// Done is closed when the task reaches a terminal status.
func (t Task) Done() <-chan struct{} {
	if t.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done.ch
}

// Wait blocks until the task finishes or ctx ends and returns the final
// copy of the task.
func (t Task) Wait(ctx context.Context) (Task, error) {
	if t.done == nil {
		return t, nil
	}
	select {
	case <-t.done.ch:
		return t.done.final, nil
	case <-ctx.Done():
		return t, ctx.Err()
	}
}

type completion struct {
	ch    chan struct{}
	once  sync.Once
	final Task
}

func (c *completion) finish(final Task) {
	c.once.Do(func() {
		c.final = final
		close(c.ch)
	})
}

type task struct {
	id        string
	bot       string
	item      packlist.Item
	label     string
	typ       TaskType
	status    Status
	size      int64
	observed  string
	address   string
	localPath string
	key       string
	created   time.Time
	updated   time.Time
	slotHeld  bool
	done      *completion
}

func newTask(bot string, item packlist.Item, label string, typ TaskType, now time.Time) *task {
	key := item.Filename
	if typ == TypeListRequest {
		key = label
	}
	return &task{
		id:      uuid.NewString(),
		bot:     bot,
		item:    item,
		label:   label,
		typ:     typ,
		status:  StatusAwaiting,
		key:     key,
		created: now,
		updated: now,
		done:    &completion{ch: make(chan struct{})},
	}
}

func (t *task) snapshot() Task {
	return Task{
		ID:               t.id,
		BotName:          t.bot,
		Item:             t.item,
		Label:            t.label,
		Type:             t.typ,
		Status:           t.status,
		Size:             t.size,
		ObservedFilename: t.observed,
		Address:          t.address,
		LocalPath:        t.localPath,
		Key:              t.key,
		CreatedAt:        t.created,
		UpdatedAt:        t.updated,
		done:             t.done,
	}
}
