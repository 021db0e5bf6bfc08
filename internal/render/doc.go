// Package render calls the Replicate prediction API to turn a captured
// viewport image into a styled rendering.
//
// Ownership boundary: this package owns the prediction lifecycle, which is
// create, poll until terminal, extract output. It never touches the bridge
// or the scene; callers hand it an already captured image. The API token
// stays inside the client and is never logged or returned.
package render
