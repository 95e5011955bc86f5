package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the fetch attributes stored in the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if fd, ok := ctx.Value(fetchDataKey{}).(*FetchData); ok {
		r.AddAttrs(slog.Group("fetch",
			slog.String("id", fd.FetchID),
			slog.String("audience", fd.Audience),
			slog.String("scope", fd.Scope),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type fetchDataKey struct{}

// FetchData identifies one credential fetch.
type FetchData struct {
	FetchID  string
	Audience string
	Scope    string
}

// WithFetchData returns a copy of ctx carrying data for Handler.
func WithFetchData(ctx context.Context, data *FetchData) context.Context {
	return context.WithValue(ctx, fetchDataKey{}, data)
}
