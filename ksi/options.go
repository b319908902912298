package ksi

import "github.com/ekobi/goksi/ksierr"

// SetRequestCacheSize adjusts the aggregator/extender services' admission
// bound. It may only increase: decreasing at runtime returns
// invalid-argument, since shrinking a cache that already holds in-flight
// handles has no well-defined effect on them.
func (c *Context) SetRequestCacheSize(n int) error {
	if n <= 0 {
		return c.pushErr(ksierr.New(ksierr.InvalidArgument, "cache size must be positive"))
	}
	if c.aggrService != nil {
		if n < c.aggrService.GetCacheSize() {
			return c.pushErr(ksierr.New(ksierr.InvalidArgument, "cache size may not be decreased at runtime"))
		}
		c.aggrService.SetCacheSize(n)
	}
	if c.extService != nil {
		if n < c.extService.GetCacheSize() {
			return c.pushErr(ksierr.New(ksierr.InvalidArgument, "cache size may not be decreased at runtime"))
		}
		c.extService.SetCacheSize(n)
	}
	return nil
}

// SetMaxRequestCount adjusts how many handles the aggregator and extender
// services keep dispatched onto their transport at once (dispatched and
// not yet collected by Run). Unlike
// the cache size, this may be raised or lowered freely at runtime: it
// only throttles dispatch depth, it doesn't reshape admitted state.
func (c *Context) SetMaxRequestCount(n int) error {
	if n <= 0 {
		return c.pushErr(ksierr.New(ksierr.InvalidArgument, "max request count must be positive"))
	}
	if c.aggrService != nil {
		c.aggrService.SetMaxRequestCount(n)
	}
	if c.extService != nil {
		c.extService.SetMaxRequestCount(n)
	}
	return nil
}
