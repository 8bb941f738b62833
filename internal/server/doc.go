// Package server exposes site search over HTTP.
//
//	GET /search?url=<start URL>&query=<text>&depth=<n>
//	GET /reports/{id}
//	GET /healthz
//
// /search crawls the site synchronously and replies with the report as
// JSON. Invalid parameters are rejected with 400 and a JSON body of the
// form {"error": "..."} before anything is fetched.
package server
