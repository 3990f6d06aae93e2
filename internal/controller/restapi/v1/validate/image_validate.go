package validate

const (
	MaxFileSize int64 = 10 * 1024 * 1024

	MaxIDLen     int = 512
	MaxFieldLen  int = 64
	MaxValueLen  int = 2048
	MaxReasonLen int = 1024
)
