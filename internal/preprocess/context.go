package preprocess

import (
	"time"

	"github.com/rickypin/capmaster/internal/capture"
	"github.com/rickypin/capmaster/internal/toolinvoke"
)

// Context is the execution context threaded through every step handler.
type Context struct {
	Runtime    RuntimeConfig
	InputFiles []string
	OutputDir  string
	TmpDir     string

	Invoker  *toolinvoke.Invoker
	Metadata *capture.Service
	Timeout  time.Duration
}
