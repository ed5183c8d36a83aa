// Package server wires the Fiber application together: shared upstream HTTP
// client, request-id middleware, and the LibraryRegistry translating
// configured library names into parsed upstream URLs plus credentials.
// Handlers in gateway and routes depend on this package instead of re-reading
// configuration per request.
package server
