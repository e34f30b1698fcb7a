package ports

import "context"

// Logger is the structured logging contract shared by analyzers, the lifecycle,
// adapters and the service loop. Fields are merged into one structured event;
// the zerolog adapter renders them as console columns or JSON keys.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err under the "error" key alongside msg and fields.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
