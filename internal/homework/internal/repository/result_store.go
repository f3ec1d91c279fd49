// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/repository/cache"
	"github.com/hanmo/hanmo/internal/homework/internal/repository/dao"
	"github.com/pkg/errors"
)

const timeLayout = "2006-01-02 15:04:05"

// KeyUsage 一次 AI 调用的流水。
type KeyUsage struct {
	TaskID    string
	Uid       int64
	Provider  string
	Model     string
	CharCount int
	LatencyMs int64
	Success   bool
	ErrorMsg  string
	CacheHits int
}

// ResultStore 批改结果与调用流水的持久化门面。
// 调用方约定：落库失败记 WARN 后吞掉，绝不把批改成功变成失败响应。
type ResultStore interface {
	SaveResult(ctx context.Context, result domain.BatchResult, fileName string, uid int64, copyBookID string) (int64, error)
	SaveSingleResult(ctx context.Context, result domain.SingleCharResult, uid int64) (int64, error)
	LogKeyUsage(ctx context.Context, usage KeyUsage) error
	FindByTaskID(ctx context.Context, taskID string) (domain.BatchResult, error)
	FindSingleByTaskID(ctx context.Context, taskID string) (domain.SingleCharResult, error)
	FindRecentHomeworks(ctx context.Context, uid int64) ([]domain.HomeworkRecord, error)
	CountRecentCalls(ctx context.Context, uid int64, minutes int) (int64, error)
	GrowthCurve(ctx context.Context, uid int64, charName string) ([]domain.CharAnalysis, error)
	ListTemplates(ctx context.Context) ([]domain.CopybookTemplate, error)
	FindTemplateByID(ctx context.Context, id int64) (domain.CopybookTemplate, error)
}

type resultStore struct {
	homeworkDAO dao.HomeworkDAO
	analysisDAO dao.AnalysisDAO
	keyLogDAO   dao.KeyLogDAO
	singleDAO   dao.SingleAnalysisDAO
	templateDAO dao.TemplateDAO
	tplCache    cache.TemplateCache
	logger      *elog.Component
}

func NewResultStore(
	homeworkDAO dao.HomeworkDAO,
	analysisDAO dao.AnalysisDAO,
	keyLogDAO dao.KeyLogDAO,
	singleDAO dao.SingleAnalysisDAO,
	templateDAO dao.TemplateDAO,
	tplCache cache.TemplateCache,
) ResultStore {
	return &resultStore{
		homeworkDAO: homeworkDAO,
		analysisDAO: analysisDAO,
		keyLogDAO:   keyLogDAO,
		singleDAO:   singleDAO,
		templateDAO: templateDAO,
		tplCache:    tplCache,
		logger:      elog.DefaultLogger.With(elog.FieldComponent("ResultStore")),
	}
}

func (r *resultStore) SaveResult(ctx context.Context, result domain.BatchResult,
	fileName string, uid int64, copyBookID string) (int64, error) {
	createdAt := result.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().Format(timeLayout)
	}
	homeworkID, err := r.homeworkDAO.Save(ctx, dao.Homework{
		TaskID:           result.TaskID,
		UserID:           uid,
		OriginalFileName: fileName,
		CopyBookID:       copyBookID,
		CharCount:        result.TotalCharacters,
		GridRows:         result.GridRows,
		GridCols:         result.GridCols,
		AvgScore:         float64(result.AvgOverallScore),
		AvgStructure:     float64(result.AvgStructureScore),
		AvgStroke:        float64(result.AvgStrokeScore),
		SummaryComment:   result.SummaryComment,
		Status:           "COMPLETED",
		ProcessingTimeMs: result.ProcessingTimeMs,
		CreatedAt:        createdAt,
	})
	if err != nil {
		return 0, errors.Wrap(err, "保存作业记录失败")
	}

	entities := slice.Map(result.Analyses, func(idx int, a domain.CharAnalysis) dao.Analysis {
		return dao.Analysis{
			HomeworkID:     homeworkID,
			CharIndex:      a.CharIndex,
			RecognizedChar: a.RecognizedChar,
			Row:            a.Row,
			Column:         a.Column,
			StructureScore: domain.Clamp100(a.StructureScore),
			StrokeScore:    domain.Clamp100(a.StrokeScore),
			OverallScore:   domain.Clamp100(a.OverallScore),
			ResultJSON:     r.toJSON(a),
			OverallComment: a.OverallComment,
			Suggestion:     a.Suggestion,
			CacheKey:       buildCacheKey(copyBookID, a.RecognizedChar),
			CreatedAt:      createdAt,
		}
	})
	if err = r.analysisDAO.SaveBatch(ctx, entities); err != nil {
		return 0, errors.Wrap(err, "保存逐字分析失败")
	}

	r.logger.Info("批改结果已持久化",
		elog.String("taskId", result.TaskID),
		elog.Int64("homeworkId", homeworkID),
		elog.Int("charCount", result.TotalCharacters))
	return homeworkID, nil
}

func (r *resultStore) SaveSingleResult(ctx context.Context, result domain.SingleCharResult, uid int64) (int64, error) {
	createdAt := result.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().Format(timeLayout)
	}
	id, err := r.singleDAO.Save(ctx, dao.SingleAnalysis{
		TaskID:           result.TaskID,
		UserID:           uid,
		RecognizedChar:   result.RecognizedChar,
		StructureScore:   domain.Clamp100(result.StructureScore),
		StructureDetail:  result.StructureDetail,
		StrokeScore:      domain.Clamp100(result.StrokeScore),
		StrokeDetail:     result.StrokeDetail,
		BalanceScore:     domain.Clamp100(result.BalanceScore),
		BalanceDetail:    result.BalanceDetail,
		SpacingScore:     domain.Clamp100(result.SpacingScore),
		SpacingDetail:    result.SpacingDetail,
		OverallScore:     domain.Clamp100(result.OverallScore),
		OverallComment:   result.OverallComment,
		Suggestion:       result.Suggestion,
		ProcessingTimeMs: result.ProcessingTimeMs,
		CreatedAt:        createdAt,
	})
	if err != nil {
		return 0, errors.Wrap(err, "保存单字精批结果失败")
	}
	r.logger.Info("单字精批结果已持久化",
		elog.String("taskId", result.TaskID),
		elog.String("char", result.RecognizedChar),
		elog.Int("score", result.OverallScore))
	return id, nil
}

func (r *resultStore) LogKeyUsage(ctx context.Context, usage KeyUsage) error {
	return r.keyLogDAO.Save(ctx, dao.KeyLog{
		TaskID:       usage.TaskID,
		UserID:       usage.Uid,
		Provider:     usage.Provider,
		Model:        usage.Model,
		CharCount:    usage.CharCount,
		LatencyMs:    usage.LatencyMs,
		Success:      usage.Success,
		ErrorMessage: usage.ErrorMsg,
		CacheHits:    usage.CacheHits,
		CreatedAt:    time.Now().Format(timeLayout),
	})
}

func (r *resultStore) FindByTaskID(ctx context.Context, taskID string) (domain.BatchResult, error) {
	hw, err := r.homeworkDAO.FindByTaskID(ctx, taskID)
	if err != nil {
		return domain.BatchResult{}, err
	}
	entities, err := r.analysisDAO.FindByHomeworkID(ctx, hw.ID)
	if err != nil {
		return domain.BatchResult{}, err
	}
	return domain.BatchResult{
		TaskID:          hw.TaskID,
		ImageID:         hw.TaskID,
		TotalCharacters: hw.CharCount,
		GridRows:        hw.GridRows,
		GridCols:        hw.GridCols,
		Analyses: slice.Map(entities, func(idx int, e dao.Analysis) domain.CharAnalysis {
			return r.toCharAnalysis(e)
		}),
		AvgStructureScore: int(hw.AvgStructure),
		AvgStrokeScore:    int(hw.AvgStroke),
		AvgOverallScore:   int(hw.AvgScore),
		SummaryComment:    hw.SummaryComment,
		ProcessingTimeMs:  hw.ProcessingTimeMs,
		CreatedAt:         hw.CreatedAt,
	}, nil
}

func (r *resultStore) FindSingleByTaskID(ctx context.Context, taskID string) (domain.SingleCharResult, error) {
	e, err := r.singleDAO.FindByTaskID(ctx, taskID)
	if err != nil {
		return domain.SingleCharResult{}, err
	}
	return domain.SingleCharResult{
		TaskID:           e.TaskID,
		RecognizedChar:   e.RecognizedChar,
		StructureScore:   e.StructureScore,
		StructureDetail:  e.StructureDetail,
		StrokeScore:      e.StrokeScore,
		StrokeDetail:     e.StrokeDetail,
		BalanceScore:     e.BalanceScore,
		BalanceDetail:    e.BalanceDetail,
		SpacingScore:     e.SpacingScore,
		SpacingDetail:    e.SpacingDetail,
		OverallScore:     e.OverallScore,
		OverallComment:   e.OverallComment,
		Suggestion:       e.Suggestion,
		ProcessingTimeMs: e.ProcessingTimeMs,
		CreatedAt:        e.CreatedAt,
	}, nil
}

func (r *resultStore) FindRecentHomeworks(ctx context.Context, uid int64) ([]domain.HomeworkRecord, error) {
	list, err := r.homeworkDAO.FindRecentByUid(ctx, uid)
	if err != nil {
		return nil, err
	}
	return slice.Map(list, func(idx int, hw dao.Homework) domain.HomeworkRecord {
		return domain.HomeworkRecord{
			ID:               hw.ID,
			TaskID:           hw.TaskID,
			Uid:              hw.UserID,
			OriginalFileName: hw.OriginalFileName,
			CopyBookID:       hw.CopyBookID,
			CharCount:        hw.CharCount,
			AvgScore:         hw.AvgScore,
			Status:           hw.Status,
			ProcessingTimeMs: hw.ProcessingTimeMs,
			CreatedAt:        hw.CreatedAt,
		}
	}), nil
}

func (r *resultStore) CountRecentCalls(ctx context.Context, uid int64, minutes int) (int64, error) {
	if uid == 0 {
		return 0, nil
	}
	since := time.Now().Add(-time.Duration(minutes) * time.Minute).Format(timeLayout)
	return r.keyLogDAO.CountRecentCalls(ctx, uid, since)
}

func (r *resultStore) GrowthCurve(ctx context.Context, uid int64, charName string) ([]domain.CharAnalysis, error) {
	list, err := r.analysisDAO.FindGrowthCurve(ctx, uid, charName)
	if err != nil {
		return nil, err
	}
	return slice.Map(list, func(idx int, e dao.Analysis) domain.CharAnalysis {
		return r.toCharAnalysis(e)
	}), nil
}

func (r *resultStore) ListTemplates(ctx context.Context) ([]domain.CopybookTemplate, error) {
	if cached, err := r.tplCache.GetList(ctx); err == nil && len(cached) > 0 {
		return cached, nil
	}
	entities, err := r.templateDAO.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	templates := slice.Map(entities, func(idx int, e dao.CopybookTemplate) domain.CopybookTemplate {
		return toTemplate(e)
	})
	if err = r.tplCache.SetList(ctx, templates); err != nil {
		r.logger.Warn("模板列表写缓存失败", elog.FieldErr(err))
	}
	return templates, nil
}

func (r *resultStore) FindTemplateByID(ctx context.Context, id int64) (domain.CopybookTemplate, error) {
	e, err := r.templateDAO.FindByID(ctx, id)
	if err != nil {
		return domain.CopybookTemplate{}, err
	}
	return toTemplate(e), nil
}

func (r *resultStore) toCharAnalysis(e dao.Analysis) domain.CharAnalysis {
	a := domain.CharAnalysis{
		CharIndex:      e.CharIndex,
		RecognizedChar: e.RecognizedChar,
		Row:            e.Row,
		Column:         e.Column,
		StructureScore: e.StructureScore,
		StrokeScore:    e.StrokeScore,
		OverallScore:   e.OverallScore,
		OverallComment: e.OverallComment,
		Suggestion:     e.Suggestion,
	}
	// 完整字段优先从 JSON 恢复
	if e.ResultJSON != "" {
		var full domain.CharAnalysis
		if err := json.Unmarshal([]byte(e.ResultJSON), &full); err == nil {
			full.CharIndex = e.CharIndex
			return full
		}
	}
	return a
}

func (r *resultStore) toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("JSON 序列化失败", elog.FieldErr(err))
		return "{}"
	}
	return string(data)
}

func toTemplate(e dao.CopybookTemplate) domain.CopybookTemplate {
	return domain.CopybookTemplate{
		ID:          e.ID,
		Name:        e.Name,
		GridType:    domain.GridType(e.GridType),
		GridRows:    e.GridRows,
		GridCols:    e.GridCols,
		HeaderRatio: e.HeaderRatio,
		Description: e.Description,
	}
}

func buildCacheKey(copyBookID, charName string) string {
	if copyBookID == "" || charName == "" {
		return ""
	}
	return copyBookID + ":" + charName
}
