// Package formdata decodes application/x-www-form-urlencoded request
// bodies. Out of core per spec.md §1 — handlers call this, the reactor
// never does — so it is free to lean on net/url's own decoder rather
// than anything epoll-adjacent.
package formdata

import "net/url"

// ParseURLEncoded decodes a "k=v&k2=v2" body into url.Values.
func ParseURLEncoded(body []byte) (url.Values, error) {
	return url.ParseQuery(string(body))
}
