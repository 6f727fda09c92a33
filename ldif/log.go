package ldif

// Log receives the audit messages produced while a record is parsed and
// transformed. SetRecord switches the record the following messages belong to.
type Log interface {
	SetRecord(key string)
	Printf(format string, args ...any)
}

// NopLog discards every message.
type NopLog struct{}

func (NopLog) SetRecord(string)      {}
func (NopLog) Printf(string, ...any) {}
