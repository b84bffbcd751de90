// Package http is the transport boundary of the transfer engine.
//
// This package handles:
//   - HEAD probes to discover the backing resource size
//   - Ranged and unranged streaming GETs with a cache-defeating token
//   - Upload filler requests (random query value plus random headers)
//   - Classification of every failure into a closed set of kinds
//
// Compression is disabled on the transport so that counted bytes are wire
// bytes. No retries happen here except for the HEAD probe; download and
// upload workers own their retry loops.
//
// # Error kinds
//
//	KindCancelled         context cancelled, not a failure
//	KindRangeUnsupported  416, non-2xx or mismatched 206 answer to a ranged request
//	KindBenignTransient   connection refused/reset, HTTP/2 protocol errors, 405
//	KindOtherTransient    everything else
//
// An upload exchange that completes has delivered its filler, so SendFiller
// succeeds on any status but 405.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	info, err := client.Head(ctx, url)
//	resp, err := client.Get(ctx, url, &http.ByteRange{Start: 0, End: 1<<20 - 1})
//	if http.KindOf(err) == http.KindRangeUnsupported {
//	    resp, err = client.Get(ctx, url, nil)
//	}
package http
