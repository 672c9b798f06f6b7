package session

import "go.opentelemetry.io/otel"

const scopeName = "github.com/rbright/buddy/internal/session"

var tracer = otel.Tracer(scopeName)
