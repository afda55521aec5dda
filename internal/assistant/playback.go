package assistant

import (
	"github.com/pbaille/diario/internal/domain"
)

// sequence tracks a read-back of matched memories
type sequence struct {
	entries []domain.Entry
	index   int
}

func (c *Controller) read(found []domain.Entry) {
	if len(found) == 0 {
		c.speak(msgNothingToRead, c.listen)
		return
	}
	c.speak(foundMemories(len(found)), func() {
		c.seq = &sequence{entries: found}
		c.playCurrent()
	})
}

// playCurrent announces the current memory, plays or reads it, then
// waits PlaybackPause before the next one. After the last memory the
// end notice is spoken and the dialogue listens again.
func (c *Controller) playCurrent() {
	s := c.seq
	if s.index >= len(s.entries) {
		c.seq = nil
		c.speak(msgEndOfMemories, c.listen)
		return
	}

	body := memoryBody(s.entries[s.index])
	c.speak(memoryIntro(s.index), func() {
		if body.Audio != "" {
			c.play(body.Audio, c.pause)
			return
		}
		c.speak(body.Text, c.pause)
	})
}

func (c *Controller) pause() {
	c.arm(c.opts.PlaybackPause, evPause)
}
