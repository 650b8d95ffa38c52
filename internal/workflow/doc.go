// Package workflow owns the watched packlists and ties them to their
// download schedulers.
//
// The Manager builds one Packlist per configured entry: a Source that
// fetches the raw list (HTTP endpoint or the bot itself), the Grammar that
// parses it, a download.Manager that bounds concurrent transfers, and a
// refresh timer. Each refresh cycle parses fresh content, advances the pack
// cursor, filters items against the active subscriptions and the in-flight
// set, and hands the survivors to the scheduler.
//
// Transfer events reported by the chat client are routed back to the owning
// packlist by filename (exact, then fuzzy across version tags) and
// reconciled: completed files are moved into the show's subdirectory and
// bump the subscription, failures rewind the cursor so the pack is offered
// again, untrusted offers are refused and reported. Every outcome is
// written to the download history in the state store.
package workflow
