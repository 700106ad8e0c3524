// Package consent implements the data-processing consent gate every user must
// pass before any message reaches the language model.
package consent

import (
	"context"
	"strings"
	"sync"
	"time"

	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/retry"
)

// Outcome labels used in the conversation log for turns the gate answered.
const (
	OutcomeGranted   = "consent_granted"
	OutcomeRefused   = "consent_refused"
	OutcomeRequested = "consent_requested"
)

const (
	MsgGranted   = "¡Perfecto, muchas gracias! Tus datos están protegidos con Ferreinox SAS BIC. Ahora sí, ¿en qué te puedo ayudar hoy?"
	MsgRefused   = "Entendido. No puedo procesar tus datos ni ayudarte con tus consultas sin tu permiso. Si cambias de opinión, escribe 'Sí' en cualquier momento. ¡Que tengas un buen día!"
	MsgRequested = "¡Hola! Soy el asistente virtual de Ferreinox SAS BIC. 🤖\n\n" +
		"Para poder ayudarte y gestionar tus consultas (como deudas, pedidos o inventario), " +
		"necesito tu permiso para el tratamiento de tus datos personales (como tu número de teléfono), " +
		"de acuerdo con nuestra política de Habeas Data.\n\n" +
		"¿Aceptas el tratamiento de tus datos? Por favor, responde solo *'Sí'* o *'No'*."
)

var (
	affirmative = map[string]bool{
		"si": true, "sí": true, "sii": true, "acepto": true, "claro": true,
		"yes": true, "accept": true, "ok acepto": true,
	}
	negative = map[string]bool{"no": true, "no acepto": true}
)

// Store persists consents. Append must be idempotent per user.
type Store interface {
	LoadAll(ctx context.Context) ([]string, error)
	Append(ctx context.Context, userID string, at time.Time) error
}

// Decision is the gate's verdict for one message. When Handled is false the
// message continues to the model; otherwise Reply must be sent and the turn ends.
type Decision struct {
	Handled bool
	Reply   string
	Outcome string
}

// Gate tracks which users consented. The in-memory set mirrors the store.
type Gate struct {
	mu        sync.RWMutex
	consented map[string]struct{}
	store     Store
	log       *logger.Logger
	now       func() time.Time
}

// NewGate creates a gate backed by store. A nil store keeps consents in memory only.
func NewGate(store Store, log *logger.Logger) *Gate {
	return &Gate{
		consented: make(map[string]struct{}),
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// Load populates the mirror from the store. Called once at startup.
func (g *Gate) Load(ctx context.Context) (int, error) {
	if g.store == nil {
		return 0, nil
	}
	users, err := g.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range users {
		g.consented[u] = struct{}{}
	}
	return len(g.consented), nil
}

// Has reports whether userID already consented.
func (g *Gate) Has(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.consented[userID]
	return ok
}

// Count returns the number of consented users known to this process.
func (g *Gate) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.consented)
}

// Check evaluates one inbound message against the gate. Consent is never revoked.
func (g *Gate) Check(ctx context.Context, userID, text string) Decision {
	if g.Has(userID) {
		return Decision{}
	}

	answer := strings.ToLower(strings.TrimSpace(text))
	switch {
	case affirmative[answer]:
		g.grant(ctx, userID)
		g.log.ConsentEvent(userID, OutcomeGranted)
		return Decision{Handled: true, Reply: MsgGranted, Outcome: OutcomeGranted}
	case negative[answer]:
		g.log.ConsentEvent(userID, OutcomeRefused)
		return Decision{Handled: true, Reply: MsgRefused, Outcome: OutcomeRefused}
	default:
		g.log.ConsentEvent(userID, OutcomeRequested)
		return Decision{Handled: true, Reply: MsgRequested, Outcome: OutcomeRequested}
	}
}

// grant records the consent in memory and then in the store. A store failure
// is logged; the user stays consented for the life of the process.
func (g *Gate) grant(ctx context.Context, userID string) {
	g.mu.Lock()
	if _, ok := g.consented[userID]; ok {
		g.mu.Unlock()
		return
	}
	g.consented[userID] = struct{}{}
	g.mu.Unlock()

	if g.store == nil {
		return
	}
	at := g.now()
	err := retry.Once(ctx, g.log, "consent_append", func(ctx context.Context) error {
		return g.store.Append(ctx, userID, at)
	})
	if err != nil {
		g.log.WithUserID(userID).DatabaseError("consent_append", err)
	}
}
