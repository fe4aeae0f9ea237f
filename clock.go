package flowtrack

// epochClock fires once per epoch. Time only advances when tick is called
// with a record timestamp; there is no background timer.
type epochClock struct {
	epoch int64 // nanoseconds
	armed bool
	alarm int64
}

// tick reports whether an epoch boundary has been crossed. The first tick
// arms the clock without firing.
func (c *epochClock) tick(now int64) bool {
	if !c.armed {
		c.armed = true
		c.alarm = now + c.epoch
		return false
	}
	if now >= c.alarm {
		c.alarm = now + c.epoch
		return true
	}
	return false
}
