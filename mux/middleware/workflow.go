package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/agent-mux/agent-mux/mux"
)

// Metadata keys consumed and written by WorkflowOrchestration.
const (
	MetaWorkflowID = "WorkflowId"
	MetaStageIndex = "StageIndex"
)

// Stage is one step of a workflow, bound to an agent id. A non-nil
// Condition gates forwarding into the stage.
type Stage struct {
	Name      string
	AgentID   string
	Condition func(*mux.Message) bool
}

// WorkflowOrchestrationMiddleware advances messages through named
// multi-stage workflows. When a message tagged with a workflow id and
// stage index succeeds and is not on the last stage, a next-stage
// message is emitted into Result.ForwardedMessages. The middleware never
// dispatches the forward itself; the caller re-routes it (see
// Router.RouteForwards).
type WorkflowOrchestrationMiddleware struct {
	mu        sync.RWMutex
	workflows map[string][]Stage
}

// NewWorkflowOrchestration creates an empty workflow registry.
func NewWorkflowOrchestration() *WorkflowOrchestrationMiddleware {
	return &WorkflowOrchestrationMiddleware{workflows: make(map[string][]Stage)}
}

// RegisterWorkflow adds a workflow, replacing any prior registration
// with the same name.
func (w *WorkflowOrchestrationMiddleware) RegisterWorkflow(name string, stages ...Stage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	copied := make([]Stage, len(stages))
	copy(copied, stages)
	w.workflows[name] = copied
}

// Middleware returns the pipeline function.
func (w *WorkflowOrchestrationMiddleware) Middleware() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		workflowID := msg.MetadataString(MetaWorkflowID)
		if workflowID == "" {
			return next(ctx, msg)
		}

		w.mu.RLock()
		stages, ok := w.workflows[workflowID]
		w.mu.RUnlock()
		if !ok {
			return next(ctx, msg)
		}

		stageIndex := coerceStageIndex(msg.Metadata[MetaStageIndex])
		if stageIndex < 0 || stageIndex >= len(stages) {
			return next(ctx, msg)
		}

		res, err := next(ctx, msg)
		if err != nil || res == nil || !res.Success {
			return res, err
		}

		nextIdx := stageIndex + 1
		if nextIdx >= len(stages) {
			return res, nil
		}
		nextStage := stages[nextIdx]
		if nextStage.Condition != nil && !nextStage.Condition(msg) {
			return res, nil
		}

		res.ForwardedMessages = append(res.ForwardedMessages, forwardMessage(msg, res, workflowID, nextIdx, nextStage))
		return res, nil
	}
}

// forwardMessage builds the next-stage message: fresh id, sender set to
// the stage that just ran, receiver set to the next stage's agent,
// content carrying the stage response when there is one, metadata copied
// with the advanced stage index, conversation id preserved.
func forwardMessage(msg *mux.Message, res *mux.Result, workflowID string, nextIdx int, nextStage Stage) *mux.Message {
	fwd := msg.Clone()
	fwd.ID = uuid.NewString()
	fwd.SenderID = msg.ReceiverID
	fwd.ReceiverID = nextStage.AgentID
	fwd.Subject = fmt.Sprintf("Workflow %s - Stage %d", workflowID, nextIdx)
	if res.Response != "" {
		fwd.Content = res.Response
	}
	fwd.SetMetadata(MetaStageIndex, nextIdx)
	return fwd
}

// coerceStageIndex accepts the integer-ish encodings a stage index may
// arrive in (int, int64, float64, numeric string); anything else
// defaults to 0.
func coerceStageIndex(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
		return 0
	default:
		return 0
	}
}
