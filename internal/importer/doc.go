// Package importer decides how a user's import request is ingested and
// dispatches it to the host.
//
// # Flow
//
// A UI collaborator exposes the dialog fields through a Surface. On
// submission the orchestrator takes a Request snapshot of the surface and
// walks a priority-ordered decision table:
//
//	format == umap          -> full project replacement
//	no URL                  -> embedded copy (files, else raw text)
//	URL and mode == copy    -> embedded copy fetched from the URL
//	URL and mode == link    -> remote link registration + forced refresh
//	anything else           -> nothing dispatched
//
// The orchestrator never parses payloads and never waits for ingestion to
// finish. Everything it needs from the host is described by the interfaces in
// host.go.
package importer
