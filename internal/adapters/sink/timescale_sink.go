package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yelzgniq/cap-android-steps/internal/domain"
	"github.com/yelzgniq/cap-android-steps/internal/ports"
)

// TimescaleSink archives raw step readings so history outlives the 24h window.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(samples []*domain.StepSample) error {
	if len(samples) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (sensor_id, ts, seq, step_count, raw_values, accuracy) VALUES ")

	args := make([]any, 0, len(samples)*6)
	for i, s := range samples {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6)
		raw, err := json.Marshal(s.RawValues())
		if err != nil {
			return fmt.Errorf("marshal raw values: %w", err)
		}

		args = append(args,
			s.SensorID,
			s.Timestamp,
			s.Seq,
			s.Count,
			raw,
			s.Accuracy.String(),
		)
	}

	// (sensor_id, ts, seq) is unique, so WAL replays are idempotent.
	b.WriteString(" ON CONFLICT (sensor_id, ts, seq) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.Sink = (*TimescaleSink)(nil)
