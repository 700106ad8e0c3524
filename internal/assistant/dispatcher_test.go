package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_assistant_backend/internal/consent"
	"crm_assistant_backend/internal/conversation"
	"crm_assistant_backend/internal/tools"
	"crm_assistant_backend/platform/ai/gemini"
	"crm_assistant_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies []func(history []*genai.Content) (gemini.Reply, error)
	seen    [][]*genai.Content
}

func (m *scriptedModel) Generate(_ context.Context, history []*genai.Content) (gemini.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, append([]*genai.Content(nil), history...))
	if len(m.replies) == 0 {
		return textReply("sin guion"), nil
	}
	next := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return next(history)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func textReply(text string) gemini.Reply {
	return gemini.Reply{Content: genai.NewContentFromText(text, genai.RoleModel), Text: text}
}

func callReply(names ...string) gemini.Reply {
	var parts []*genai.Part
	var calls []*genai.FunctionCall
	for i, n := range names {
		p := genai.NewPartFromFunctionCall(n, map[string]any{"product": "vinilo"})
		p.FunctionCall.ID = n + "-" + string(rune('a'+i))
		parts = append(parts, p)
		calls = append(calls, p.FunctionCall)
	}
	return gemini.Reply{Content: genai.NewContentFromParts(parts, genai.RoleModel), Calls: calls}
}

func always(r gemini.Reply) func([]*genai.Content) (gemini.Reply, error) {
	return func([]*genai.Content) (gemini.Reply, error) { return r, nil }
}

type fakeTools struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeTools) Invoke(_ context.Context, name string, _ map[string]any) tools.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	switch name {
	case "broken":
		return tools.Result{Output: "Error en la ejecución de la función: boom", Failed: true}
	case "explode":
		panic("nil map write")
	}
	return tools.Result{Output: "resultado de " + name}
}

type sent struct {
	userID string
	text   string
}

type fakeOutbound struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeOutbound) Send(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{userID, text})
	return nil
}

func (f *fakeOutbound) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeLog struct {
	mu      sync.Mutex
	entries []Entry
}

func (f *fakeLog) Record(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type harness struct {
	d        *Dispatcher
	model    *scriptedModel
	tools    *fakeTools
	out      *fakeOutbound
	log      *fakeLog
	sessions *conversation.Sessions
}

func newHarness(t *testing.T, model *scriptedModel, maxRounds int) *harness {
	t.Helper()
	store := consent.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), "u1", time.Now()))
	gate := consent.NewGate(store, logger.Discard())
	_, err := gate.Load(context.Background())
	require.NoError(t, err)

	h := &harness{
		model:    model,
		tools:    &fakeTools{},
		out:      &fakeOutbound{},
		log:      &fakeLog{},
		sessions: conversation.NewSessions(),
	}
	deps := Deps{
		Tools:     h.tools,
		Gate:      gate,
		Sessions:  h.sessions,
		Dedup:     conversation.NewWindow(100),
		Outbound:  h.out,
		Log:       h.log,
		MaxRounds: maxRounds,
		Logger:    logger.Discard(),
	}
	if model != nil {
		deps.Model = model
	}
	h.d = New(deps)
	return h
}

func (h *harness) history(userID string) []*genai.Content {
	s := h.sessions.Acquire(userID)
	defer s.Release()
	return s.History()
}

func TestDuplicateMessageYieldsOneReply(t *testing.T) {
	h := newHarness(t, &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){always(textReply("hola"))}}, 8)
	msg := Inbound{MessageID: "wamid.1", UserID: "u1", Text: "hola"}

	h.d.Handle(context.Background(), msg)
	h.d.Handle(context.Background(), msg)

	assert.Len(t, h.out.sent, 1)
	assert.Len(t, h.log.entries, 1)
	assert.Equal(t, 1, h.model.calls())
}

func TestUnconsentedUserNeverReachesModel(t *testing.T) {
	model := &scriptedModel{}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "new", Text: "¿cuánto debo?"})
	h.d.Handle(context.Background(), Inbound{MessageID: "m2", UserID: "new", Text: "Sí"})

	require.Len(t, h.log.entries, 2)
	assert.Equal(t, consent.OutcomeRequested, h.log.entries[0].Tool)
	assert.Equal(t, consent.MsgRequested, h.log.entries[0].Reply)
	assert.Equal(t, consent.OutcomeGranted, h.log.entries[1].Tool)
	assert.Equal(t, 0, model.calls())
}

func TestToolRoundAnswersAllCallsInOneContent(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(callReply("stock_lookup", "price_lookup")),
		always(textReply("Tenemos 3 unidades a $850.")),
	}}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "¿hay vinilo?"})

	assert.Equal(t, "Tenemos 3 unidades a $850.", h.out.last().text)
	assert.Equal(t, []string{"stock_lookup", "price_lookup"}, h.tools.names)
	require.Len(t, h.log.entries, 1)
	assert.Equal(t, "price_lookup", h.log.entries[0].Tool)

	require.Equal(t, 2, model.calls())
	second := model.seen[1]
	require.Len(t, second, 3)
	answers := second[2]
	assert.Equal(t, genai.RoleUser, answers.Role)
	require.Len(t, answers.Parts, 2)
	assert.Equal(t, "stock_lookup-a", answers.Parts[0].FunctionResponse.ID)
	assert.Equal(t, "resultado de stock_lookup", answers.Parts[0].FunctionResponse.Response["result"])
	assert.Equal(t, "price_lookup-b", answers.Parts[1].FunctionResponse.ID)

	assert.Len(t, h.history("u1"), 4)
}

func TestToolFailureIsRelayedToModel(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(callReply("broken")),
		always(textReply("No pude consultar eso ahora.")),
	}}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "precio"})

	assert.Equal(t, "No pude consultar eso ahora.", h.out.last().text)
	resp := model.seen[1][2].Parts[0].FunctionResponse.Response["result"]
	assert.Contains(t, resp, "boom")
}

func TestRoundLimitDiscardsSession(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(callReply("stock_lookup")),
	}}
	h := newHarness(t, model, 2)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "hola"})

	assert.Equal(t, MsgApology, h.out.last().text)
	assert.Equal(t, 3, model.calls())
	assert.Len(t, h.tools.names, 2)
	assert.Equal(t, "stock_lookup", h.log.entries[0].Tool)
	assert.Empty(t, h.history("u1"))
}

func TestModelErrorDiscardsSession(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(textReply("primera")),
		func([]*genai.Content) (gemini.Reply, error) { return gemini.Reply{}, errors.New("deadline exceeded") },
		always(textReply("de nuevo")),
	}}
	h := newHarness(t, model, 8)
	ctx := context.Background()

	h.d.Handle(ctx, Inbound{MessageID: "m1", UserID: "u1", Text: "uno"})
	assert.Len(t, h.history("u1"), 2)

	h.d.Handle(ctx, Inbound{MessageID: "m2", UserID: "u1", Text: "dos"})
	assert.Equal(t, MsgApology, h.out.last().text)
	assert.Empty(t, h.history("u1"))

	h.d.Handle(ctx, Inbound{MessageID: "m3", UserID: "u1", Text: "tres"})
	assert.Equal(t, "de nuevo", h.out.last().text)
	assert.Len(t, model.seen[2], 1)
}

func TestModelPanicSendsApologyAndDiscardsSession(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(textReply("primera")),
		func([]*genai.Content) (gemini.Reply, error) { panic("index out of range") },
		always(textReply("de nuevo")),
	}}
	h := newHarness(t, model, 8)
	ctx := context.Background()

	h.d.Handle(ctx, Inbound{MessageID: "m1", UserID: "u1", Text: "uno"})
	require.Len(t, h.history("u1"), 2)

	h.d.Handle(ctx, Inbound{MessageID: "m2", UserID: "u1", Text: "dos"})
	require.Len(t, h.out.sent, 2)
	assert.Equal(t, MsgApology, h.out.last().text)
	require.Len(t, h.log.entries, 2)
	assert.Equal(t, MsgApology, h.log.entries[1].Reply)
	assert.Empty(t, h.history("u1"))

	h.d.Handle(ctx, Inbound{MessageID: "m3", UserID: "u1", Text: "tres"})
	assert.Equal(t, "de nuevo", h.out.last().text)
}

func TestToolPanicSendsApology(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){
		always(callReply("explode")),
	}}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "hola"})

	require.Len(t, h.out.sent, 1)
	assert.Equal(t, MsgApology, h.out.last().text)
	require.Len(t, h.log.entries, 1)
	assert.Equal(t, "explode", h.log.entries[0].Tool)
	assert.Empty(t, h.history("u1"))
}

func TestBlankTextKeepsSession(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){always(textReply("  "))}}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "hola"})

	assert.Equal(t, MsgApology, h.out.last().text)
	assert.Len(t, h.history("u1"), 2)
}

func TestWhitespaceMessageAnsweredWithoutModel(t *testing.T) {
	model := &scriptedModel{}
	h := newHarness(t, model, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: " \t "})

	require.Len(t, h.out.sent, 1)
	assert.Equal(t, MsgEmptyText, h.out.last().text)
	require.Len(t, h.log.entries, 1)
	assert.Equal(t, LabelNone, h.log.entries[0].Tool)
	assert.Equal(t, 0, model.calls())
}

func TestResetClearsHistory(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){always(textReply("hola"))}}
	h := newHarness(t, model, 8)
	ctx := context.Background()

	h.d.Handle(ctx, Inbound{MessageID: "m1", UserID: "u1", Text: "hola"})
	h.d.Handle(ctx, Inbound{MessageID: "m2", UserID: "u1", Text: " /RESET "})

	assert.Equal(t, MsgReset, h.out.last().text)
	assert.Equal(t, LabelReset, h.log.entries[1].Tool)
	assert.Empty(t, h.history("u1"))
	assert.Equal(t, 1, model.calls())
}

func TestMissingModelSendsUnavailable(t *testing.T) {
	h := newHarness(t, nil, 8)

	h.d.Handle(context.Background(), Inbound{MessageID: "m1", UserID: "u1", Text: "hola"})

	assert.Equal(t, MsgUnavailable, h.out.last().text)
	assert.Equal(t, LabelNone, h.log.entries[0].Tool)
}

func TestDispatchAndWait(t *testing.T) {
	model := &scriptedModel{replies: []func([]*genai.Content) (gemini.Reply, error){always(textReply("ok"))}}
	h := newHarness(t, model, 8)

	ctx, cancel := context.WithCancel(context.Background())
	for _, id := range []string{"a", "b", "c"} {
		h.d.Dispatch(ctx, Inbound{MessageID: id, UserID: "u1", Text: "hola"})
	}
	cancel()

	waitCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, h.d.Wait(waitCtx))
	assert.Len(t, h.out.sent, 3)
	assert.Len(t, h.history("u1"), 6)
}
