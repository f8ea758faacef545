package apex

import (
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/rendercache"
)

func TestApexLoggerFields(t *testing.T) {
	h := memory.New()
	l := Logger{L: &log.Logger{Handler: h, Level: log.DebugLevel}}

	l.Debug("self-heal", rendercache.Fields{"reason": "stale"})
	l.Warn("store unavailable", nil)

	require.Len(t, h.Entries, 2)
	assert.Equal(t, log.DebugLevel, h.Entries[0].Level)
	assert.Equal(t, "stale", h.Entries[0].Fields["reason"])
	assert.Equal(t, "store unavailable", h.Entries[1].Message)
}
