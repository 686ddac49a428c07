// Package server hosts the Fiber HTTP surface of file-hub: the middleware
// chain (recover, request IDs, access logging), the upload/download/delete
// handlers in front of the cache manager, and the error-to-status mapping.
// Diagnostics live under /-/ and are registered by the routes subpackage.
package server
