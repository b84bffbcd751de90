// Package server serves a backing resource out of a gocloud.dev/blob bucket
// together with an echo endpoint, so that a transfer session can run
// against a host under the operator's control.
//
// The data path answers HEAD with the resource size, a single byte range
// with 206 (416 when the range starts past the end) and a plain GET with
// the full body. Every response carries Cache-Control: no-store.
//
// The echo path accepts any method, discards the request and answers 204.
//
// # Usage
//
//	bkt, _ := blob.OpenBucket(ctx, "file:///srv/waste")
//	srv, _ := server.New(server.Options{Bucket: bkt})
//	err := srv.ListenAndServe(ctx, ":8080")
package server
