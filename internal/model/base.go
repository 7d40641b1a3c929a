package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ── PostgreSQL JSONB 自定义类型 ──

// ColorScheme 分类 → 颜色（#rrggbb）映射，对应 JSONB 列，实现 GORM Scanner/Valuer 接口。
type ColorScheme map[string]string

// Scan 将 PostgreSQL 返回的 JSON 文本解析为 map。
func (c *ColorScheme) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("ColorScheme.Scan: unsupported type %T", src)
	}
	if len(b) == 0 {
		*c = ColorScheme{}
		return nil
	}
	m := make(ColorScheme)
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("ColorScheme.Scan: %w", err)
	}
	*c = m
	return nil
}

// Value 将 map 序列化为 JSON 文本。
func (c ColorScheme) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Clone 返回独立副本
func (c ColorScheme) Clone() ColorScheme {
	out := make(ColorScheme, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// BaseModel 通用时间戳字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
