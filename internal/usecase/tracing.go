package usecase

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/DaveSmith227/duolingo-clone-sub001/internal/usecase")
