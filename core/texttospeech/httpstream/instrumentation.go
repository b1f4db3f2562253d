package httpstream

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-voice/core/texttospeech/httpstream"

var tracer = otel.Tracer(scopeName)
