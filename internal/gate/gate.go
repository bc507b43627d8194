// Package gate implements the governed mutations of finalized records:
// merge, delete, and restore. Every operation either carries an explicit
// human approver or is covered by a visibly configured policy; there is no
// silent path to changing a record.
package gate

import (
	"fmt"
	"time"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/rules"
	"github.com/sells-group/wins-cli/internal/store"
)

// AutoMergeActor is recorded as the approver when the merge policy
// explicitly enables unattended merges.
const AutoMergeActor = "auto_merge_policy"

// ApprovalError reports an operation attempted without the required
// approval. The operation performed no writes.
type ApprovalError struct {
	Op string
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%s requires explicit approval", e.Op)
}

// Gate executes governed mutations against the store.
type Gate struct {
	Store store.Store
	Rules *rules.RuleSet
	Audit *audit.Logger
	Clock func() time.Time
}

func New(st store.Store, rs *rules.RuleSet, aud *audit.Logger) *Gate {
	return &Gate{Store: st, Rules: rs, Audit: aud, Clock: time.Now}
}
