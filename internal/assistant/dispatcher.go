// Package assistant runs one conversational turn per inbound message: dedup,
// consent, the model/tool loop, then delivery and logging of the reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"crm_assistant_backend/internal/consent"
	"crm_assistant_backend/internal/conversation"
	"crm_assistant_backend/internal/tools"
	"crm_assistant_backend/platform/ai/gemini"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/retry"

	"google.golang.org/genai"
)

// Fixed replies sent without consulting the model.
const (
	MsgUnavailable = "Lo siento, el servicio de IA de Ferreinox no está disponible."
	MsgReset       = "¡Listo! Empecemos de nuevo. ¿En qué te puedo ayudar?"
	MsgApology     = "Perdona, hubo un error en la comunicación. ¿Puedes repetirme tu pregunta?"
	MsgEmptyText   = "No recibí texto en tu mensaje. ¿En qué te puedo ayudar?"
)

// Tool labels recorded for turns that did not run a tool.
const (
	LabelNone  = "N/A"
	LabelReset = "reset"
)

const (
	resetCommand     = "/reset"
	defaultMaxRounds = 8
	defaultTimeout   = 10 * time.Second
)

var (
	errTooManyRounds = errors.New("tool round limit exceeded")
	errTurnPanicked  = errors.New("model turn panicked")
)

// Inbound is one text message received from a user.
type Inbound struct {
	MessageID  string
	UserID     string
	Text       string
	ReceivedAt time.Time
}

// Entry is one conversation log record.
type Entry struct {
	Timestamp   time.Time
	UserID      string
	UserMessage string
	Reply       string
	Tool        string
}

// Model produces the next model content for a history.
type Model interface {
	Generate(ctx context.Context, history []*genai.Content) (gemini.Reply, error)
}

// ToolInvoker executes a tool call requested by the model.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) tools.Result
}

// Outbound delivers a reply to a user.
type Outbound interface {
	Send(ctx context.Context, userID, text string) error
}

// ConversationLog records completed turns.
type ConversationLog interface {
	Record(ctx context.Context, entry Entry) error
}

// Observer receives one event per completed turn.
type Observer interface {
	ObserveTurn(tool string, elapsed time.Duration, failed bool)
}

// Deps groups the collaborators of a Dispatcher. Model may be nil when no
// model is configured; every user then receives MsgUnavailable.
type Deps struct {
	Model       Model
	Tools       ToolInvoker
	Gate        *consent.Gate
	Sessions    *conversation.Sessions
	Dedup       conversation.Deduper
	Outbound    Outbound
	Log         ConversationLog
	Observer    Observer
	MaxRounds   int
	SendTimeout time.Duration
	Logger      *logger.Logger
}

// Dispatcher owns the turn loop.
type Dispatcher struct {
	model       Model
	tools       ToolInvoker
	gate        *consent.Gate
	sessions    *conversation.Sessions
	dedup       conversation.Deduper
	outbound    Outbound
	chatlog     ConversationLog
	observer    Observer
	maxRounds   int
	sendTimeout time.Duration
	log         *logger.Logger
	now         func() time.Time
	inflight    sync.WaitGroup
}

func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		model:       deps.Model,
		tools:       deps.Tools,
		gate:        deps.Gate,
		sessions:    deps.Sessions,
		dedup:       deps.Dedup,
		outbound:    deps.Outbound,
		chatlog:     deps.Log,
		observer:    deps.Observer,
		maxRounds:   deps.MaxRounds,
		sendTimeout: deps.SendTimeout,
		log:         deps.Logger,
		now:         time.Now,
	}
	if d.maxRounds < 1 {
		d.maxRounds = defaultMaxRounds
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = defaultTimeout
	}
	if d.log == nil {
		d.log = logger.Discard()
	}
	if d.sessions == nil {
		d.sessions = conversation.NewSessions()
	}
	if d.dedup == nil {
		d.dedup = conversation.NewWindow(0)
	}
	if d.gate == nil {
		d.gate = consent.NewGate(nil, d.log)
	}
	return d
}

// Dispatch handles msg on its own goroutine, detached from the caller's
// cancellation. Use Wait to drain in-flight turns on shutdown.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Inbound) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.Handle(context.WithoutCancel(ctx), msg)
	}()
}

// Wait blocks until all dispatched turns finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one turn synchronously. It never panics and never returns an
// error; failures are logged and, where possible, answered with an apology.
func (d *Dispatcher) Handle(ctx context.Context, msg Inbound) {
	ctx = context.WithValue(ctx, logger.UserIDKey, msg.UserID)
	ctx = context.WithValue(ctx, logger.MessageIDKey, msg.MessageID)
	log := d.log.WithContext(ctx)

	start := d.now()
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = start
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("turn panicked", "panic", fmt.Sprint(rec))
		}
	}()

	if !d.dedup.FirstSeen(ctx, msg.MessageID) {
		log.Warn("duplicate message ignored")
		return
	}

	if d.model == nil {
		log.Error("model unavailable, sending canned reply")
		d.deliver(ctx, log, msg, MsgUnavailable, LabelNone, start, true)
		return
	}

	if decision := d.gate.Check(ctx, msg.UserID, msg.Text); decision.Handled {
		d.deliver(ctx, log, msg, decision.Reply, decision.Outcome, start, false)
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		log.Info("blank message, asking user to repeat")
		d.deliver(ctx, log, msg, MsgEmptyText, LabelNone, start, false)
		return
	}

	reply, label, failed := d.converse(ctx, log, msg)
	d.deliver(ctx, log, msg, reply, label, start, failed)
}

// converse runs the model under the user's session lock.
func (d *Dispatcher) converse(ctx context.Context, log *logger.Logger, msg Inbound) (reply, label string, failed bool) {
	sess := d.sessions.Acquire(msg.UserID)
	defer sess.Release()

	if strings.EqualFold(strings.TrimSpace(msg.Text), resetCommand) {
		sess.Reset()
		return MsgReset, LabelReset, false
	}

	history, reply, label, err := d.runTurn(ctx, log, sess.History(), msg.Text)
	if err != nil {
		log.Error("model turn failed, discarding session", "error", err, "tool", label)
		sess.Reset()
		return MsgApology, label, true
	}

	sess.Commit(history)
	if strings.TrimSpace(reply) == "" {
		log.Warn("model returned blank text")
		return MsgApology, label, false
	}
	return reply, label, false
}

// runTurn appends the user message and alternates model calls with tool
// resolution until the model answers with text.
// A panic in the model adapter or a tool surfaces as errTurnPanicked.
func (d *Dispatcher) runTurn(ctx context.Context, log *logger.Logger, history []*genai.Content, text string) (out []*genai.Content, reply, label string, err error) {
	label = LabelNone
	defer func() {
		if rec := recover(); rec != nil {
			out, reply, err = nil, "", fmt.Errorf("%w: %v", errTurnPanicked, rec)
		}
	}()

	history = append(history, genai.NewContentFromText(text, genai.RoleUser))

	for round := 0; ; round++ {
		resp, err := d.model.Generate(ctx, history)
		if err != nil {
			return nil, "", label, err
		}
		history = append(history, resp.Content)

		if len(resp.Calls) == 0 {
			return history, resp.Text, label, nil
		}
		if round >= d.maxRounds {
			return nil, "", label, errTooManyRounds
		}

		parts := make([]*genai.Part, 0, len(resp.Calls))
		for _, call := range resp.Calls {
			label = call.Name
			log.Info("model requested tool", "tool", call.Name, "round", round+1)
			res := d.tools.Invoke(ctx, call.Name, call.Args)

			part := genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": res.Output})
			part.FunctionResponse.ID = call.ID
			parts = append(parts, part)
		}
		history = append(history, genai.NewContentFromParts(parts, genai.RoleUser))
	}
}

// deliver sends the reply and records the turn. Both are best effort.
func (d *Dispatcher) deliver(ctx context.Context, log *logger.Logger, msg Inbound, reply, label string, start time.Time, failed bool) {
	err := retry.Once(ctx, log, "send_reply", func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		return d.outbound.Send(sendCtx, msg.UserID, reply)
	})
	if err != nil {
		log.Error("failed to send reply", "error", err)
	}

	if d.chatlog != nil {
		entry := Entry{
			Timestamp:   msg.ReceivedAt,
			UserID:      msg.UserID,
			UserMessage: msg.Text,
			Reply:       reply,
			Tool:        label,
		}
		err := retry.Once(ctx, log, "record_turn", func(ctx context.Context) error {
			logCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			return d.chatlog.Record(logCtx, entry)
		})
		if err != nil {
			log.DatabaseError("record_turn", err)
		}
	}

	elapsed := d.now().Sub(start)
	log.Info("turn completed", "tool", label, "elapsed", elapsed, "failed", failed)
	if d.observer != nil {
		d.observer.ObserveTurn(label, elapsed, failed)
	}
}
