package ports

import "time"

// Policy bounds the WAL and queue between a sensor source and the window.
type Policy struct {
	MaxWALSizeBytes int64         `yaml:"max_wal_size_bytes" default:"268435456"`
	MaxQueueLen     int           `yaml:"max_queue_len" default:"10000"`
	MaxBatchSize    int           `yaml:"max_batch_size" default:"500"`
	IdleSleep       time.Duration `yaml:"idle_sleep" default:"20ms"`

	OnWALFull   string `yaml:"on_wal_full" default:"block"`   // "block", "drop"
	OnQueueFull string `yaml:"on_queue_full" default:"block"` // "block", "drop", "reject"
}
