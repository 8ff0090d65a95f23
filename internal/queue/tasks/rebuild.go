package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	appErr "github.com/projectaudit/engine/pkg/errors"
	"github.com/projectaudit/engine/pkg/logger"
)

const TypeSimilarityRebuild = "similarity:rebuild"

// RebuildPayload is the task payload for pairwise similarity rebuilds.
type RebuildPayload struct {
	FacultyEmail string `json:"faculty_email"`
}

func NewRebuildTask(facultyEmail string) (*asynq.Task, error) {
	email := strings.ToLower(strings.TrimSpace(facultyEmail))
	if email == "" {
		return nil, appErr.New(appErr.CodeInvalid, "faculty email is required")
	}
	b, err := json.Marshal(RebuildPayload{FacultyEmail: email})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSimilarityRebuild, b,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		// one queued rebuild per faculty at a time
		asynq.Unique(5*time.Minute),
	), nil
}

// Rebuilder rescores a faculty member's project pairs.
type Rebuilder interface {
	RebuildPairwise(ctx context.Context, facultyEmail string) (int, error)
}

// RebuildTaskHandler handles pairwise rebuild tasks.
type RebuildTaskHandler struct {
	rebuilder Rebuilder
}

func NewRebuildTaskHandler(r Rebuilder) *RebuildTaskHandler {
	return &RebuildTaskHandler{rebuilder: r}
}

func (h *RebuildTaskHandler) HandleRebuild(ctx context.Context, t *asynq.Task) error {
	if id, ok := asynq.GetTaskID(ctx); ok {
		ctx = logger.WithContext(ctx, logger.L().With(zap.String("task_id", id)))
	}
	var p RebuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.Ctx(ctx).Error("invalid rebuild task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.FacultyEmail == "" {
		logger.Ctx(ctx).Error("rebuild task without faculty email")
		return fmt.Errorf("empty faculty email: %w", asynq.SkipRetry)
	}

	logger.Ctx(ctx).Info("handling rebuild task", zap.String("faculty", p.FacultyEmail))
	start := time.Now()
	n, err := h.rebuilder.RebuildPairwise(ctx, p.FacultyEmail)
	if err != nil {
		logger.Ctx(ctx).Error("pairwise rebuild failed", zap.String("faculty", p.FacultyEmail), zap.Error(err))
		if appErr.IsCode(err, appErr.CodeInvalid) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Ctx(ctx).Info("rebuild task done",
		zap.String("faculty", p.FacultyEmail),
		zap.Int("pairs", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Register installs the task handlers on mux.
func (h *RebuildTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSimilarityRebuild, h.HandleRebuild)
}

// Enqueuer submits rebuild tasks through an asynq client.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueRebuild queues a rebuild for the faculty member and returns the task id.
func (e *Enqueuer) EnqueueRebuild(ctx context.Context, facultyEmail string) (string, error) {
	task, err := NewRebuildTask(facultyEmail)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return "", appErr.Wrap(err, appErr.CodeConflict, "a rebuild is already queued for this faculty")
		}
		logger.Ctx(ctx).Error("enqueue rebuild task failed", zap.String("faculty", facultyEmail), zap.Error(err))
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "enqueue rebuild task failed")
	}
	logger.Ctx(ctx).Info("rebuild task enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return info.ID, nil
}
