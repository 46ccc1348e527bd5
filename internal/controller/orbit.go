package controller

// Orbit is the single camera-orbit control. Manipulations check it out for
// their duration; orbiting is enabled only while nobody holds it.
type Orbit struct {
	holder string
}

// Acquire checks the control out for owner. It fails when someone else
// holds it.
func (o *Orbit) Acquire(owner string) bool {
	if o.holder != "" && o.holder != owner {
		return false
	}
	o.holder = owner
	return true
}

// Release returns the control if owner holds it.
func (o *Orbit) Release(owner string) {
	if o.holder == owner {
		o.holder = ""
	}
}

func (o *Orbit) Enabled() bool  { return o.holder == "" }
func (o *Orbit) Holder() string { return o.holder }
