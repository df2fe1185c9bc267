package rtloop

// UserFDCallback is invoked on the owning thread when a user-registered
// descriptor becomes ready for the events it was registered for.
type UserFDCallback func(fd int, events IOEvents)

// AddUserFD registers fd for read and/or write readiness notification,
// putting it into nonblocking mode (spec §4.1).
func (t *Thread) AddUserFD(fd int, read, write bool, cb UserFDCallback) error {
	var events IOEvents
	if read {
		events |= EventRead
	}
	if write {
		events |= EventWrite
	}
	return t.poller.add(fd, events, func(fd int, ev IOEvents) { t.safeCall(func() { cb(fd, ev) }) })
}

// RemoveUserFD deregisters fd. It does not close fd; ownership of the
// descriptor itself remains with the caller.
func (t *Thread) RemoveUserFD(fd int) error {
	return t.poller.remove(fd)
}
