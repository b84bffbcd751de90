// Package progress renders transfer snapshots on a terminal.
//
// Each active direction gets a bar, followed by a totals row and the
// session's status line colored by severity:
//
//	[datawaster] Download ████████░░░░░░░  52.3% | 52.3 MiB / 100 MiB
//	[datawaster] Upload   ███████░░░░░░░░  47.1% | 47.1 MiB / 100 MiB
//	[datawaster] Total: 99.4 MiB | Speed: 12.4 MiB/s | 8s
//
// Unbounded sessions show byte counts without bars.
//
// # Usage
//
//	r := progress.NewRenderer(progress.Options{Output: os.Stderr, Labels: catalog})
//	c := engine.NewController(engine.Options{Display: r, ...})
//
// The package also formats and parses human-readable byte sizes.
package progress
