// Package payload produces cryptographically random filler.
//
// Two shapes are produced:
//   - Filler: a random query value plus randomly named headers, used by
//     upload workers to consume outbound bandwidth without a request body.
//   - Generate: a stream of random bytes, used to create the
//     backing resource that download workers read from.
//
// # Filler size
//
// The accounted size of a Filler is exactly what it puts on the wire beyond
// the fixed request line:
//
//	len(query) + Σ(len(name) + len(": ") + len(value))
//
// # Usage
//
//	f, err := payload.NewFiller(payload.DefaultFillerOptions())
//	// f.Query, f.Headers, f.Size()
//
//	err = payload.Generate(w, 100*1024*1024, func(done, total int64) {})
package payload
