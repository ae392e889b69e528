package tui

// RowUpdateMsg updates a single row's fields by column header.
type RowUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// WorkDoneMsg signals that the run has finished.
type WorkDoneMsg struct{}

// ErrorMsg stops the program on a fatal error.
type ErrorMsg struct {
	Err error
}
