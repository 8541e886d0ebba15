// Package pagination walks Microsoft Graph collections that are split across
// responses with @odata.nextLink.
//
// Graph cursors are opaque and each link is only known after the previous
// response arrives, so pages are fetched strictly in sequence. Iteration is
// lazy: nothing is requested until the caller ranges over the sequence, and
// stopping early issues no further requests.
//
// Example usage:
//
//	for sections, err := range pagination.Pages[onenote.Section](ctx, graph, url) {
//		if err != nil {
//			return err
//		}
//		// handle one response page
//	}
//
// Items flattens the same walk into single elements.
package pagination
