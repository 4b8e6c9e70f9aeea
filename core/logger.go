package core

// Logger is any service that can log messages.
// expected args: error, map[string]interface{} and an optional Person (the signed-in admin).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the admin a log entry is about.
type Person struct {
	ID       string
	Username string
	Email    string
}
