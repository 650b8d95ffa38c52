package preflight

import (
	"context"
	"fmt"

	"autoxdcc/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
	}
	return append(results, CheckPacklists(ctx, cfg)...)
}

// CheckPacklists probes every HTTP packlist endpoint.
func CheckPacklists(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := make([]Result, 0, len(cfg.Packlists))
	for _, name := range cfg.PacklistNames() {
		pl := cfg.Packlists[name]
		label := fmt.Sprintf("Packlist %s", name)
		if !pl.UsesHTTP() {
			results = append(results, Result{Name: label, Passed: true, Detail: fmt.Sprintf("requested from %s", pl.Current)})
			continue
		}
		results = append(results, CheckEndpoint(ctx, label, pl.URL))
	}
	return results
}
