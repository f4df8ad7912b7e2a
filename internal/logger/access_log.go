package logger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// accessLogCore is a zapcore.Core that persists entries carrying an event
// code and ignores everything else.
type accessLogCore struct {
	zapcore.LevelEnabler
	db     *sql.DB
	fields []zapcore.Field
}

func NewAccessLogCore(db *sql.DB, enab zapcore.LevelEnabler) zapcore.Core {
	return &accessLogCore{LevelEnabler: enab, db: db}
}

func (c *accessLogCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

func (c *accessLogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *accessLogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	code, _ := enc.Fields[eventKey].(string)
	if code == "" {
		return nil
	}
	actor, _ := enc.Fields[actorKey].(string)
	requestID, _ := enc.Fields[requestIDKey].(string)
	delete(enc.Fields, eventKey)
	delete(enc.Fields, actorKey)
	delete(enc.Fields, requestIDKey)

	var details sql.NullString
	if len(enc.Fields) > 0 {
		b, err := json.Marshal(enc.Fields)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := c.db.Exec(`
	INSERT INTO access_logs (timestamp, level, event_code, message, actor, request_id, details)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ent.Time.UTC().Format(time.RFC3339Nano), ent.Level.String(), code, ent.Message,
		sql.NullString{String: actor, Valid: actor != ""},
		sql.NullString{String: requestID, Valid: requestID != ""},
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to persist access log: %w", err)
	}
	return nil
}

func (c *accessLogCore) Sync() error { return nil }
