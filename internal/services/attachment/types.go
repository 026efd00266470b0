// File: internal/services/attachment/types.go
package attachment

// Logger defines the logging interface used by the attachment service
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// File is an upload waiting to be stored. An empty MimeType is sniffed
// from the data.
type File struct {
	Filename string
	MimeType string
	Data     []byte
}
