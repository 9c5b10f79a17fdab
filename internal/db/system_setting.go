package db

import "gorm.io/gorm"

// SystemSetting 存储后台可配置的系统级键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeySiteName 表示站点名称。
	SettingKeySiteName = "site_name"
	// SettingKeyPromptAgentEnabled 控制提交后是否自动生成 Midjourney 提示词。
	SettingKeyPromptAgentEnabled = "prompt_agent_enabled"
	// SettingKeyPromptAgentURL 覆盖配置文件中的提示词代理地址。
	SettingKeyPromptAgentURL = "prompt_agent_url"
)
