// Package placement chooses a destination host for a product from the
// configured list of cache hosts.
//
// A host may be registered more than once. Each registration is one slot in
// the rotation, so a host listed twice receives twice the share of products.
// This lets operators balance load across mismatched machines from
// configuration alone.
//
// Example:
//
//	placer := NewRoundRobinPlacer()
//	placer.RegisterHost("espa@cache01")
//	placer.RegisterHost("espa@cache02")
//	placer.RegisterHost("espa@cache02")
//
//	host, _ := placer.Place(0) // espa@cache01
//	host, _ = PlaceProduct(placer, "LT50290302011001PAC01")
package placement

import (
	"hash/fnv"
)

// Placer selects destination hosts.
//
// Implementations must be thread-safe and deterministic: the same index
// returns the same host for as long as the registered hosts are unchanged.
type Placer interface {
	// Place selects a host for the given index.
	Place(index int) (string, error)

	// RegisterHost adds one slot for host to the rotation.
	RegisterHost(host string) error

	// ListHosts returns each registered host once, in registration order.
	ListHosts() []string
}

// PlaceProduct picks a host for productName. A product is always placed on
// the same host, so redelivering it overwrites the earlier copy instead of
// leaving one behind on another machine.
func PlaceProduct(p Placer, productName string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(productName))
	return p.Place(int(h.Sum32() & 0x7fffffff))
}
