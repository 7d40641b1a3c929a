package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// EntryFilter 工时记录列表筛选条件
type EntryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Project   string // 模糊匹配（不区分大小写）
	Category  string
	Status    string
	Offset    int
	Limit     int
	SortBy    string
	SortOrder string // asc | desc
}

// entrySortColumns 允许排序的字段白名单
var entrySortColumns = map[string]string{
	"date":           "date",
	"start_time":     "start_time",
	"end_time":       "end_time",
	"hours_worked":   "hours_worked",
	"calculated_pay": "calculated_pay",
	"created_at":     "created_at",
	"project":        "project",
}

// TimesheetEntryRepository 工时记录数据访问接口
// 所有查询都按 user_id 隔离
type TimesheetEntryRepository interface {
	Create(ctx context.Context, entry *model.TimesheetEntry) error
	BatchCreate(ctx context.Context, entries []model.TimesheetEntry) error
	GetByID(ctx context.Context, userID, id string) (*model.TimesheetEntry, error)
	Update(ctx context.Context, entry *model.TimesheetEntry) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, filter EntryFilter) ([]model.TimesheetEntry, int64, error)
	ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.TimesheetEntry, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]model.TimesheetEntry, error)
	// ListForRecalculation 返回需要重算薪资的记录；includeOverrides=false 时只返回未设置单条费率的记录
	ListForRecalculation(ctx context.Context, userID string, includeOverrides bool) ([]model.TimesheetEntry, error)
	UpdatePay(ctx context.Context, entryID string, pay float64) error
	// BulkUpdate 批量更新指定字段，返回实际修改行数
	BulkUpdate(ctx context.Context, userID string, ids []string, fields map[string]interface{}) (int64, error)
	// ProjectSummary 按项目汇总（包含所有状态），from/to 为 nil 时不限制
	ProjectSummary(ctx context.Context, userID string, from, to *time.Time) ([]ProjectSummaryRow, error)
}

// ProjectSummaryRow 项目汇总行
type ProjectSummaryRow struct {
	Project      string
	TotalHours   float64
	TotalPay     float64
	EntryCount   int64
	CategoryList string
}

// Categories 拆分去重后的分类列表
func (r ProjectSummaryRow) Categories() []string {
	return splitList(r.CategoryList)
}

type timesheetEntryRepo struct {
	db *gorm.DB
}

// NewTimesheetEntryRepo 创建 TimesheetEntryRepository 实例
func NewTimesheetEntryRepo(db *gorm.DB) TimesheetEntryRepository {
	return &timesheetEntryRepo{db: db}
}

func (r *timesheetEntryRepo) Create(ctx context.Context, entry *model.TimesheetEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *timesheetEntryRepo) BatchCreate(ctx context.Context, entries []model.TimesheetEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

func (r *timesheetEntryRepo) GetByID(ctx context.Context, userID, id string) (*model.TimesheetEntry, error) {
	var entry model.TimesheetEntry
	err := r.db.WithContext(ctx).
		Where("entry_id = ? AND user_id = ?", id, userID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *timesheetEntryRepo) Update(ctx context.Context, entry *model.TimesheetEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *timesheetEntryRepo) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("entry_id = ? AND user_id = ?", id, userID).
		Delete(&model.TimesheetEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *timesheetEntryRepo) List(ctx context.Context, userID string, filter EntryFilter) ([]model.TimesheetEntry, int64, error) {
	var entries []model.TimesheetEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.TimesheetEntry{}).Where("user_id = ?", userID)

	if filter.StartDate != nil {
		db = db.Where("date >= ?", formatDate(*filter.StartDate))
	}
	if filter.EndDate != nil {
		db = db.Where("date <= ?", formatDate(*filter.EndDate))
	}
	if filter.Project != "" {
		db = db.Where("project ILIKE ?", "%"+filter.Project+"%")
	}
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := entrySortColumns[filter.SortBy]
	if !ok {
		column = "date"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}

	if err := db.
		Order(column + " " + order).
		Order("start_time " + order).
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *timesheetEntryRepo) ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]model.TimesheetEntry, error) {
	var entries []model.TimesheetEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, formatDate(from), formatDate(to)).
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}

func (r *timesheetEntryRepo) ListRecent(ctx context.Context, userID string, limit int) ([]model.TimesheetEntry, error) {
	var entries []model.TimesheetEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *timesheetEntryRepo) ListForRecalculation(ctx context.Context, userID string, includeOverrides bool) ([]model.TimesheetEntry, error) {
	var entries []model.TimesheetEntry
	db := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeOverrides {
		db = db.Where("(pay_rate_override IS NULL OR pay_rate_override = 0)")
	}
	err := db.Order("date ASC, start_time ASC").Find(&entries).Error
	return entries, err
}

func (r *timesheetEntryRepo) UpdatePay(ctx context.Context, entryID string, pay float64) error {
	return r.db.WithContext(ctx).
		Model(&model.TimesheetEntry{}).
		Where("entry_id = ?", entryID).
		Updates(map[string]interface{}{
			"calculated_pay": pay,
			"updated_at":     time.Now(),
		}).Error
}

func (r *timesheetEntryRepo) BulkUpdate(ctx context.Context, userID string, ids []string, fields map[string]interface{}) (int64, error) {
	if len(ids) == 0 || len(fields) == 0 {
		return 0, nil
	}
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.TimesheetEntry{}).
		Where("user_id = ? AND entry_id IN ?", userID, ids).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *timesheetEntryRepo) ProjectSummary(ctx context.Context, userID string, from, to *time.Time) ([]ProjectSummaryRow, error) {
	var rows []ProjectSummaryRow
	db := r.db.WithContext(ctx).Model(&model.TimesheetEntry{}).Where("user_id = ?", userID)
	if from != nil {
		db = db.Where("date >= ?", formatDate(*from))
	}
	if to != nil {
		db = db.Where("date <= ?", formatDate(*to))
	}
	err := db.
		Select(`project,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(SUM(calculated_pay), 0) AS total_pay,
			COUNT(*) AS entry_count,
			string_agg(DISTINCT category, ',') AS category_list`).
		Group("project").
		Order("total_hours DESC").
		Scan(&rows).Error
	return rows, err
}
