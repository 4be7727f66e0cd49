package models

// Template is a named, language-tagged content template managed by tenant admins.
type Template struct {
	Base
	Name     string `gorm:"size:100;not null;index;uniqueIndex:idx_templates_name_language" json:"name"`
	Language string `gorm:"size:8;uniqueIndex:idx_templates_name_language" json:"language"`
	Content  string `gorm:"type:text;not null" json:"content"`
}
