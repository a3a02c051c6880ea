package bridge

// HandleBytes is the ingest handler, called by the serial reader for every
// chunk read from the line. It never blocks: bytes that do not fit in the
// buffer, or arrive before Run allocated it, are dropped and counted.
func (b *Bridge) HandleBytes(p []byte) {
	if len(p) == 0 {
		return
	}
	buf := b.buf.Load()
	if buf == nil {
		b.deps.Stats.AddDropped(len(p))
		return
	}
	n := buf.Push(p)
	if n > 0 {
		b.deps.Stats.AddIngested(n)
	}
	if n < len(p) {
		b.deps.Stats.AddDropped(len(p) - n)
	}
}
