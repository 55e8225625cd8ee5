package modem

// Buffered reports the chunks queued by the reader and not yet consumed.
func (c *Channel) Buffered() int {
	return len(c.chunks)
}
