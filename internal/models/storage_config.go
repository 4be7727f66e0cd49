package models

// Storage types
const (
	StorageTypeS3   = "S3"
	StorageTypeFTP  = "FTP"
	StorageTypeSFTP = "SFTP"
)

// StorageConfig is a named delivery target for generated export files
// when emailing them is disabled.
type StorageConfig struct {
	Base
	Name   string  `gorm:"not null" json:"name"`
	Type   string  `gorm:"not null" json:"type"` // S3, FTP, SFTP
	Config JSONMap `gorm:"type:jsonb" json:"config"`
}
