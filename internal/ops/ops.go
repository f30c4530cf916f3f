// Package ops implements whole-state transfer: the combined export document,
// its validated import, and the file-based import/export built on them.
package ops

import (
	"github.com/hpungsan/tempo/internal/lists"
	"github.com/hpungsan/tempo/internal/schedule"
)

// SchemaVersion is written to every export document.
const SchemaVersion = "1.0"

// MaxImportBytes bounds the size of an import file.
const MaxImportBytes = 32 << 20

// Stores are the collections a whole-state transfer reads and replaces.
type Stores struct {
	Lists    *lists.Store
	Schedule *schedule.Scheduler
}
