// Package preflight provides readiness checks for the filesystem paths and
// packlist endpoints that autoxdcc depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on start and logs every failed check.
//   - The CLI "axdcc status" command uses the individual check functions
//     (CheckDirectoryAccess, CheckEndpoint) to display packlist health.
//
// Packlists fetched from the bot itself have no endpoint to probe and are
// reported as passed.
package preflight
