package orchestrator

import (
	"strings"

	"claudestation/internal/apiclient"
	"claudestation/internal/store"
)

// collectingSink accumulates a streamed Chat response into the text
// RunTurn needs to persist as a Message, while forwarding every delta
// to the caller's own Sink (typically the UI) unchanged and immediately.
type collectingSink struct {
	inner apiclient.Sink

	text      strings.Builder
	thinking  strings.Builder
	modelUsed string
	usage     store.Usage
}

func (c *collectingSink) OnTextDelta(text string) {
	c.text.WriteString(text)
	if c.inner != nil {
		c.inner.OnTextDelta(text)
	}
}

func (c *collectingSink) OnThinkingDelta(text string) {
	c.thinking.WriteString(text)
	if c.inner != nil {
		c.inner.OnThinkingDelta(text)
	}
}

func (c *collectingSink) OnUsage(modelUsed string, usage store.Usage) {
	c.modelUsed = modelUsed
	c.usage = usage
	if c.inner != nil {
		c.inner.OnUsage(modelUsed, usage)
	}
}

func (c *collectingSink) OnDone() {
	if c.inner != nil {
		c.inner.OnDone()
	}
}

var _ apiclient.Sink = (*collectingSink)(nil)
