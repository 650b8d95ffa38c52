// Package logs tails the daemon log file with bounded memory.
//
// A negative offset reads the last N lines; a non-negative offset resumes
// where the previous call stopped. Follow mode polls for new lines until the
// wait elapses or the context ends. An optional match filter keeps only lines
// mentioning a packlist, bot or file name.
package logs
