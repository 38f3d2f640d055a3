package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
	"sheet-insights/pkg/logging"

	"github.com/google/uuid"
)

// MetricsRecorder 摄取管道指标上报能力，由 server.Metrics 实现
type MetricsRecorder interface {
	RecordUpload(format string, persisted bool, rows int)
	RecordInsight(outcome string, duration time.Duration)
}

// noopMetrics 未接入指标时的空实现
type noopMetrics struct{}

func (noopMetrics) RecordUpload(string, bool, int)      {}
func (noopMetrics) RecordInsight(string, time.Duration) {}

// Service 表格摄取与查看服务
type Service struct {
	store      storage.Store
	summarizer Summarizer
	log        *slog.Logger
	metrics    MetricsRecorder
}

// NewService 创建摄取服务
func NewService(store storage.Store, summarizer Summarizer, logger *slog.Logger) *Service {
	if summarizer == nil {
		summarizer = NoKeySummarizer{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, summarizer: summarizer, log: logger, metrics: noopMetrics{}}
}

// SetMetrics 接入指标上报
func (s *Service) SetMetrics(m MetricsRecorder) {
	if m != nil {
		s.metrics = m
	}
}

// IngestResult 一次摄取的产出
type IngestResult struct {
	Rows []model.Row `json:"file_data"`
	// File 仅在持久化时填充
	File     *model.SheetFile `json:"file,omitempty"`
	Insights string           `json:"insights"`
}

// Ingest 执行完整摄取管道：解析 → 可选持久化 → 摘要
//
// 持久化发生在摘要之前：摘要失败不影响已落库的文件。
// persist 为 false 时解析结果只随响应返回，不进入用户的文件集合。
func (s *Service) Ingest(ctx context.Context, owner *model.User, filename, format string, data []byte, persist bool) (*IngestResult, error) {
	normalized := NormalizeFormat(format)
	if !SupportedFormat(normalized) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	start := time.Now()
	rows, err := ParseSheet(data, normalized)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Rows: rows}

	if persist {
		file := &model.SheetFile{
			ID:        uuid.NewString(),
			FileName:  filename,
			FileType:  normalized,
			Rows:      rows,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.AppendFile(ctx, owner.ID, file); err != nil {
			return nil, fmt.Errorf("append file: %w", err)
		}
		result.File = file
		s.log.Info("sheet persisted",
			logging.WithUserID(owner.ID),
			logging.WithFileID(file.ID),
			slog.Int("rows", len(rows)))
	}

	result.Insights = s.summarize(ctx, rows)

	s.metrics.RecordUpload(normalized, persist, len(rows))
	s.log.Info("sheet ingested",
		logging.WithUserID(owner.ID),
		slog.String("format", normalized),
		slog.Int("rows", len(rows)),
		slog.Bool("persisted", persist),
		logging.WithDuration(time.Since(start)))
	return result, nil
}

// ViewResult 查看已保存文件的产出
type ViewResult struct {
	File     *model.SheetFile `json:"file"`
	Insights string           `json:"insights"`
}

// View 返回已保存的文件并重新生成摘要
//
// 文件属主不存在或已停用时一律返回 ErrNotFound，不泄露账号状态。
func (s *Service) View(ctx context.Context, ownerID, fileID string) (*ViewResult, error) {
	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if owner == nil || !owner.IsActive() {
		return nil, storage.ErrNotFound
	}

	file, err := s.store.GetFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	return &ViewResult{
		File:     file,
		Insights: s.summarize(ctx, file.Rows),
	}, nil
}

// summarize 生成摘要并上报耗时与结果分类
func (s *Service) summarize(ctx context.Context, rows []model.Row) string {
	start := time.Now()
	insights := s.summarizer.Summarize(ctx, rows)

	outcome := "ok"
	switch insights {
	case insightNoAPIKey:
		outcome = "no_key"
	case insightFailed:
		outcome = "failed"
	case insightEmpty:
		outcome = "empty"
	}
	s.metrics.RecordInsight(outcome, time.Since(start))
	return insights
}

// History 返回用户文件集合的摘要列表（插入顺序）
func (s *Service) History(ctx context.Context, ownerID string) ([]model.FileSummary, error) {
	return s.store.ListFileSummaries(ctx, ownerID)
}

// Remove 从用户集合中删除一个文件
func (s *Service) Remove(ctx context.Context, ownerID, fileID string) error {
	if err := s.store.RemoveFile(ctx, ownerID, fileID); err != nil {
		return err
	}
	s.log.Info("sheet removed", logging.WithUserID(ownerID), logging.WithFileID(fileID))
	return nil
}

// UpdateProfile 更新用户展示名与头像
func (s *Service) UpdateProfile(ctx context.Context, userID, name, picture string) error {
	return s.store.UpdateUserProfile(ctx, userID, name, picture)
}
