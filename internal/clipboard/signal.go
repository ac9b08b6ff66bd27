package clipboard

// Signal is the process-wide "ignore the next pasteboard change" channel.
// Raising it several times before the Watcher drains it counts once.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unraised signal
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise marks the next pasteboard change as self-inflicted
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the receive side drained by the Watcher
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// reset withdraws a raised signal
func (s *Signal) reset() {
	select {
	case <-s.ch:
	default:
	}
}

// Copier writes history entries back to the pasteboard without the Watcher
// capturing them again.
type Copier struct {
	board  Pasteboard
	signal *Signal
}

// NewCopier creates a copier that raises signal before every write
func NewCopier(board Pasteboard, signal *Signal) *Copier {
	return &Copier{board: board, signal: signal}
}

// CopyText puts text on the pasteboard
func (c *Copier) CopyText(text string) error {
	c.signal.Raise()
	if err := c.board.WriteText(text); err != nil {
		c.signal.reset()
		return err
	}
	return nil
}

// CopyImage puts PNG data on the pasteboard
func (c *Copier) CopyImage(data []byte) error {
	c.signal.Raise()
	if err := c.board.WriteImage(data); err != nil {
		c.signal.reset()
		return err
	}
	return nil
}
