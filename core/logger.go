package core

// Logger is any service that can report messages & errors.
// expected args: error | map[string]interface{} | identity (reported as the acting person)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
