// Package engine runs transfer sessions: it plans the work, spawns download
// and upload workers, counts their bytes against a shared target and reports
// progress snapshots.
//
// # Session lifecycle
//
//	Idle ──Start──▶ Running ──target reached──▶ Completed
//	                   │
//	                   └──Stop / ctx done──▶ Stopped
//
// A controller runs one session at a time. Starting again after a session
// has finished replaces it with a fresh one; counters never carry over.
//
// # Planning
//
// With a bounded target, download workers each own a contiguous byte range
// of the backing resource (or of the target, when the resource is smaller
// or its size is unknown). Upload workers each own a quota of the target.
// In ModeBoth the thread count is halved for each direction and an odd
// remainder is dropped.
//
// # Accounting
//
// The Accountant is the only shared mutable state. Every add is clamped to
// the bytes remaining, so the final total equals the target exactly and
// completion fires once.
//
// # Usage
//
//	c := engine.NewController(engine.Options{
//	    DownloadURL: "https://example.com/data-waste.bin",
//	    UploadURL:   "https://example.com/wastebin",
//	    Transport:   http.NewClient(http.DefaultOptions()),
//	    Display:     renderer,
//	})
//
//	err := c.Start(ctx, engine.SessionConfig{Mode: engine.ModeBoth, TargetMB: 100, Threads: 8})
//	<-c.Done()
package engine
