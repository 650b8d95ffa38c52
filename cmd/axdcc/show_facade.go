package main

import (
	"context"

	"autoxdcc/internal/api"
	"autoxdcc/internal/ipc"
	"autoxdcc/internal/state"
)

// showAPI is served by the daemon when it runs and by the state store
// otherwise.
type showAPI interface {
	List(ctx context.Context, archived bool, query string) ([]api.Show, error)
	Add(ctx context.Context, req api.ShowRequest) (api.ShowChange, error)
	Update(ctx context.Context, req api.ShowRequest) (api.ShowChange, error)
	Remove(ctx context.Context, query string) (api.ShowChange, error)
	Archive(ctx context.Context, query string) (api.ShowChange, error)
	Restore(ctx context.Context, query string) (api.ShowChange, error)
}

type historyAPI interface {
	History(ctx context.Context, packlist string, limit int) ([]api.Download, error)
}

func (c *commandContext) withShows(fn func(showAPI) error) error {
	return c.withStore(func(client *ipc.Client, store *state.Store) error {
		if client != nil {
			return fn(&showIPCAdapter{client: client})
		}
		return fn(api.NewShowService(store))
	})
}

func (c *commandContext) withHistory(fn func(historyAPI) error) error {
	return c.withStore(func(client *ipc.Client, store *state.Store) error {
		if client != nil {
			return fn(&historyIPCAdapter{client: client})
		}
		return fn(api.NewDownloadService(store))
	})
}

type showIPCAdapter struct {
	client *ipc.Client
}

func (a *showIPCAdapter) List(_ context.Context, archived bool, query string) ([]api.Show, error) {
	resp, err := a.client.ShowList(archived, query)
	if err != nil {
		return nil, err
	}
	return resp.Shows, nil
}

func (a *showIPCAdapter) Add(_ context.Context, req api.ShowRequest) (api.ShowChange, error) {
	return changeOf(a.client.ShowAdd(req))
}

func (a *showIPCAdapter) Update(_ context.Context, req api.ShowRequest) (api.ShowChange, error) {
	return changeOf(a.client.ShowUpdate(req))
}

func (a *showIPCAdapter) Remove(_ context.Context, query string) (api.ShowChange, error) {
	return changeOf(a.client.ShowRemove(query))
}

func (a *showIPCAdapter) Archive(_ context.Context, query string) (api.ShowChange, error) {
	return changeOf(a.client.ShowArchive(query))
}

func (a *showIPCAdapter) Restore(_ context.Context, query string) (api.ShowChange, error) {
	return changeOf(a.client.ShowRestore(query))
}

func changeOf(resp *ipc.ShowResponse, err error) (api.ShowChange, error) {
	if err != nil {
		return api.ShowChange{}, err
	}
	return resp.ShowChange, nil
}

type historyIPCAdapter struct {
	client *ipc.Client
}

func (a *historyIPCAdapter) History(_ context.Context, packlist string, limit int) ([]api.Download, error) {
	resp, err := a.client.DownloadHistory(packlist, limit)
	if err != nil {
		return nil, err
	}
	return resp.Downloads, nil
}
