package runtime

import "os"

type ServiceOption func(*ServiceCtx)

// WithServiceTermination allows terminating the service through an external channel.
func WithServiceTermination(ch chan os.Signal) ServiceOption {
	return func(c *ServiceCtx) {
		if ch != nil {
			c.shutdownChannel = ch
		}
	}
}

// WithWaitingForServer enables blocking on WaitForServer until the http
// server has started accepting connections.
func WithWaitingForServer() ServiceOption {
	return func(c *ServiceCtx) {
		c.serverReady = make(chan struct{}, 1)
	}
}
