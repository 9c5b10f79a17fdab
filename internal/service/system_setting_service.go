package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallplates/internal/db"
)

const defaultSiteName = "Small Plates"

// SystemSettings 描述后台可配置的系统信息。
type SystemSettings struct {
	SiteName           string `json:"site_name"`
	PromptAgentEnabled bool   `json:"prompt_agent_enabled"`
	PromptAgentURL     string `json:"prompt_agent_url"`
}

// SystemSettingsInput 用于更新系统设置。
type SystemSettingsInput struct {
	SiteName           string `json:"site_name" validate:"max=120"`
	PromptAgentEnabled bool   `json:"prompt_agent_enabled"`
	PromptAgentURL     string `json:"prompt_agent_url" validate:"omitempty,url,max=1024"`
}

// SystemSettingService 提供系统设置的读取与更新能力。
type SystemSettingService struct {
	db *gorm.DB
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB) *SystemSettingService {
	return &SystemSettingService{db: gdb}
}

var settingKeys = []string{
	db.SettingKeySiteName,
	db.SettingKeyPromptAgentEnabled,
	db.SettingKeyPromptAgentURL,
}

// GetSettings 读取系统设置，如未设置将返回默认值。提示词代理默认开启。
func (s *SystemSettingService) GetSettings(ctx context.Context) (SystemSettings, error) {
	result := SystemSettings{SiteName: defaultSiteName, PromptAgentEnabled: true}

	var records []db.SystemSetting
	if err := s.db.WithContext(ctx).Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		switch record.Key {
		case db.SettingKeySiteName:
			if strings.TrimSpace(record.Value) != "" {
				result.SiteName = record.Value
			}
		case db.SettingKeyPromptAgentEnabled:
			if enabled, err := strconv.ParseBool(strings.TrimSpace(record.Value)); err == nil {
				result.PromptAgentEnabled = enabled
			}
		case db.SettingKeyPromptAgentURL:
			result.PromptAgentURL = strings.TrimSpace(record.Value)
		}
	}

	return result, nil
}

// UpdateSettings 保存系统设置，未填写站点名称时回退默认值。
func (s *SystemSettingService) UpdateSettings(ctx context.Context, input SystemSettingsInput) (SystemSettings, error) {
	input.SiteName = strings.TrimSpace(input.SiteName)
	input.PromptAgentURL = strings.TrimRight(strings.TrimSpace(input.PromptAgentURL), "/")
	if err := validateStruct(input); err != nil {
		return SystemSettings{}, err
	}
	if input.PromptAgentURL != "" {
		if u, err := url.Parse(input.PromptAgentURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return SystemSettings{}, newValidationError("prompt_agent_url must be an http(s) URL")
		}
	}

	sanitized := SystemSettings{
		SiteName:           input.SiteName,
		PromptAgentEnabled: input.PromptAgentEnabled,
		PromptAgentURL:     input.PromptAgentURL,
	}
	if sanitized.SiteName == "" {
		sanitized.SiteName = defaultSiteName
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertSetting(tx, db.SettingKeySiteName, sanitized.SiteName); err != nil {
			return err
		}
		if err := upsertSetting(tx, db.SettingKeyPromptAgentEnabled, strconv.FormatBool(sanitized.PromptAgentEnabled)); err != nil {
			return err
		}
		return upsertSetting(tx, db.SettingKeyPromptAgentURL, sanitized.PromptAgentURL)
	})
	if err != nil {
		return SystemSettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return sanitized, nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
