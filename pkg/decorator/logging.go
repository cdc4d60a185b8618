package decorator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/floralens/identify/pkg/logger"
)

type (
	queryLoggingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		logger logger.Logger
	}

	commandLoggingDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		logger logger.Logger
	}
)

func (d queryLoggingDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	start := time.Now()
	actionName := generateActionName(query)

	log := d.logger.WithContext(ctx)
	log.Debug().Str("query", actionName).Msg("executing query")

	defer func() {
		elapsed := time.Since(start)

		if err != nil {
			log.Error().
				Str("query", actionName).
				Dur("duration", elapsed).
				Err(err).
				Msg("query failed")

			return
		}

		log.Debug().
			Str("query", actionName).
			Dur("duration", elapsed).
			Msg("query executed")
	}()

	return d.base.Execute(ctx, query)
}

func (d commandLoggingDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	start := time.Now()
	actionName := generateActionName(cmd)

	log := d.logger.WithContext(ctx)
	log.Debug().Str("command", actionName).Msg("handling command")

	defer func() {
		elapsed := time.Since(start)

		if err != nil {
			log.Error().
				Str("command", actionName).
				Dur("duration", elapsed).
				Err(err).
				Msg("command failed")

			return
		}

		log.Debug().
			Str("command", actionName).
			Dur("duration", elapsed).
			Msg("command handled")
	}()

	return d.base.Handle(ctx, cmd)
}

func generateActionName(action any) string {
	name := fmt.Sprintf("%T", action)
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}

	return name
}
