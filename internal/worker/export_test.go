package worker

// Bare drops the worker line ev was decoded from so events compare by value.
func Bare(ev Event) Event {
	return withOrigin(ev, origin{})
}
