package responder

import (
	"context"

	"fitcoach/internal/memory"
)

// Welcome answers greetings with a static capability summary. No LLM call;
// greetings must be instant and free.
type Welcome struct{}

// NewWelcome returns the greeting responder.
func NewWelcome() *Welcome { return &Welcome{} }

func (w *Welcome) Name() string { return "welcome" }

const welcomeText = `¡Hola! Soy tu coach de fitness y nutrición. Puedo ayudarte con:

• Rutinas de entrenamiento, técnica y progresión
• Alimentación: comidas, proteína, calorías y hábitos

Cuéntame qué quieres trabajar hoy.`

func (w *Welcome) Respond(ctx context.Context, turn string, mem memory.BoundedContext) (string, error) {
	return welcomeText, nil
}
