// Package weather supplies the current-conditions line shown by the weather flow.
package weather

import (
	"context"
	"strings"
)

const DefaultSummary = "🌤️ 25°C - Parcialmente nublado con probabilidad de lluvia por la tarde"

// Provider returns a one-line summary of the current weather.
type Provider interface {
	Current(ctx context.Context) (string, error)
}

// Static reports a fixed summary, typically the one configured for the hotel.
type Static struct {
	Summary string
}

func NewStatic(summary string) Static {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = DefaultSummary
	}

	return Static{Summary: summary}
}

func (s Static) Current(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return s.Summary, nil
}
