package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
)

// InitLogger sets up apex/log with a compact handler on w and a level from
// the RENDERCACHE_LOG env variable (default ERROR).
func InitLogger(w io.Writer) {
	level := strings.ToUpper(os.Getenv("RENDERCACHE_LOG"))
	if level == "" {
		level = "ERROR"
	}
	log.SetHandler(&lineHandler{w: w})
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.ErrorLevel
	}
	log.SetLevel(lvl)
}

// lineHandler writes "<time> <L> <message> k=v ..." lines.
type lineHandler struct {
	w io.Writer
}

func (h *lineHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", time.Now().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}
