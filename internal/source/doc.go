// Package source fetches raw packlist lines.
//
// Two strategies implement Source: HTTP downloads the catalogue from a web
// endpoint, retrying immediately on timeouts and dropped connections, while
// Bot asks the bot itself for its list through the packlist's download
// manager and waits for the transfer to finish. Both keep the last good
// content as a snapshot under the state directory so that a non-forced fetch
// can be served without touching the network.
package source
