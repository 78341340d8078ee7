// Package render turns a quiz url into the html its scripts produce.
package render

import (
	"context"
	"errors"

	"quizagent/internal/quiz"
)

var ErrRender = errors.New("render failed")

// Renderer loads a page and returns its html once the network is quiet. Failures,
// including hitting the context deadline, wrap ErrRender.
type Renderer interface {
	Render(ctx context.Context, url string) (quiz.RenderedPage, error)
	Close() error
}
