package responder

import (
	"context"

	"go.uber.org/zap"

	"fitcoach/internal/llm"
	"fitcoach/internal/memory"
)

// Persona is an LLM-backed coaching agent: a routing target name plus the
// system prompt that shapes its voice.
type Persona struct {
	name   string
	system string
	client llm.Client
	logger *zap.Logger
}

func newPersona(name, system string, client llm.Client, logger *zap.Logger) *Persona {
	return &Persona{name: name, system: system, client: client, logger: logger}
}

func (p *Persona) Name() string { return p.name }

func (p *Persona) Respond(ctx context.Context, turn string, mem memory.BoundedContext) (string, error) {
	prompt := buildPrompt(turn, mem)
	p.logger.Debug("persona responding",
		zap.String("persona", p.name),
		zap.Int("context_turns", len(mem.Entries)))

	reply, err := p.client.CompleteWithSystem(ctx, p.system, prompt)
	if err != nil {
		return "", err
	}
	return reply, nil
}

const fitnessSystem = `Eres un entrenador personal cercano y motivador. ` +
	`Respondes en el idioma del usuario, normalmente español. ` +
	`Das consejos concretos de entrenamiento: rutinas, técnica, progresión y descanso. ` +
	`Adaptas la recomendación al historial de la conversación cuando existe. ` +
	`Si la pregunta es médica, recomiendas consultar a un profesional de salud. ` +
	`Respuestas breves: máximo tres párrafos cortos.`

const nutritionSystem = `Eres un asesor de nutrición práctico y sin dogmas. ` +
	`Respondes en el idioma del usuario, normalmente español. ` +
	`Das pautas concretas de alimentación: comidas, macros, hidratación y hábitos sostenibles. ` +
	`Adaptas la recomendación al historial de la conversación cuando existe. ` +
	`No prescribes dietas clínicas; para condiciones médicas recomiendas un nutricionista colegiado. ` +
	`Respuestas breves: máximo tres párrafos cortos.`

// NewFitnessCoach returns the training-domain persona.
func NewFitnessCoach(client llm.Client, logger *zap.Logger) *Persona {
	return newPersona("fitness", fitnessSystem, client, logger)
}

// NewNutritionCoach returns the nutrition-domain persona.
func NewNutritionCoach(client llm.Client, logger *zap.Logger) *Persona {
	return newPersona("nutrition", nutritionSystem, client, logger)
}
