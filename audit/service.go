package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audited actions.
const (
	ActionCombatVictory = "combat_victory"
	ActionCombatDefeat  = "combat_defeat"
	ActionCombatFlee    = "combat_flee"
	ActionQuestStart    = "quest_start"
	ActionQuestComplete = "quest_complete"
)

// AuditEntry holds one audit event to be logged.
type AuditEntry struct {
	TraceID  string
	PlayerID string
	Action   string
	Detail   interface{}
}

// Logger is the write side of the audit service.
type Logger interface {
	Log(entry AuditEntry)
}

// Reader lists recorded entries of one player, newest first.
type Reader interface {
	Recent(ctx context.Context, playerID string, limit int) ([]model.AuditLog, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Log(AuditEntry) {}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write.
func (svc *Service) Log(entry AuditEntry) {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		svc.logger.Warn("audit detail not serializable",
			zap.String("action", entry.Action), zap.Error(err))
		detail = []byte("null")
	}
	record := &model.AuditLog{
		TraceID:  entry.TraceID,
		PlayerID: entry.PlayerID,
		Action:   entry.Action,
		Detail:   datatypes.JSON(detail),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Recent returns up to limit flushed entries of playerID, newest first.
// Entries still queued in memory are not visible.
func (svc *Service) Recent(ctx context.Context, playerID string, limit int) ([]model.AuditLog, error) {
	var out []model.AuditLog
	err := svc.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("audit recent: %w", err)
	}
	return out, nil
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
