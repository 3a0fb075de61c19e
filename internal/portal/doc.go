// Package portal is the client for the upstream legal portal.
//
// A Session is the JSON file written by the external login collaborator:
//
//	{"cookies": {"XSRF-TOKEN": "..."}, "headers": {"Referer": "..."}}
//
// Client issues every request through a fetch.Fetcher carrying that
// session. Request bodies are built from JSON templates in the config,
// with per-request fields (nro, pointInTime, startFrom, hitsPp, ...) set on
// a copy of the template.
//
// A response without its expected top-level key (documentList,
// availableHitCount, units, keywords) means "no data" and is not an error.
package portal
