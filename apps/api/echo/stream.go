package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type event struct {
	name string
	data interface{}
}

// emitFunc queues an event for the client. It never blocks past the end of the request.
type emitFunc func(name string, data interface{})

// streamEvents serves a subscription as server-sent events.
// subscribe must block until its context ends; the subscription is bound to the request.
func streamEvents(ctx echo.Context, subscribe func(context.Context, emitFunc) error) error {
	reqCtx, cancel := context.WithCancel(ctx.Request().Context())
	defer cancel()

	events := make(chan event)
	emit := func(name string, data interface{}) {
		select {
		case events <- event{name: name, data: data}:
		case <-reqCtx.Done():
		}
	}

	done := make(chan error, 1)
	go func() { done <- subscribe(reqCtx, emit) }()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case err := <-done:
			return errors.Wrap(err, "subscribing")
		case ev := <-events:
			data, err := json.Marshal(ev.data)
			if err != nil {
				return errors.Wrapf(err, "marshalling %s event", ev.name)
			}
			if _, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.name, data); err != nil {
				return nil // client went away
			}
			res.Flush()
		}
	}
}
