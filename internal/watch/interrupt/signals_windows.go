package interrupt

import "os"

// DefaultSignals are the signals requesting a graceful stop. Windows
// only delivers os.Interrupt, for Ctrl+C and Ctrl+Break.
var DefaultSignals = []os.Signal{os.Interrupt}
