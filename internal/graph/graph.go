// Package graph wires the orchestration engine's nodes together: consent
// checks, tone indexing, intent classification, the three sub-agent
// handlers, and composition of the final reply.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/common/logger"
	"mailrelay.app/engine/internal/classifier"
	"mailrelay.app/engine/internal/composer"
	"mailrelay.app/engine/internal/consent"
	"mailrelay.app/engine/internal/engineerr"
	"mailrelay.app/engine/internal/knowledge"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/responder/general"
	"mailrelay.app/engine/internal/responder/info"
	"mailrelay.app/engine/internal/scheduler"
	"mailrelay.app/engine/internal/tone"
)

// Request is the input to one graph run: the email being processed plus
// everything a node might need to act on the user's behalf.
type Request struct {
	Email model.EmailContext

	// UserID is the consent token subject; UserAddress is the mailbox
	// the run acts on behalf of (tone fetch, KB directory, scheduler
	// attendee identity). They are often the same value but are kept
	// distinct since a consent subject need not be an email address.
	// UserName, when set, is how the composed reply signs off.
	UserID      string
	UserAddress string
	UserName    string

	PrimaryToken string
	KBToken      string
	AccessToken  string

	UserHint    string
	DocBytes    []byte
	DocFilename string
	History     []model.ConversationMessage
}

// Graph is the per-process, stateless wiring of one orchestration run.
// Every call to Run owns its own retrievers and classifier plan; nothing
// here is mutated across runs.
type Graph struct {
	consentGate   *consent.Gate
	toneBuilder   *tone.Builder
	kbBuilder     *knowledge.Builder
	classifier    *classifier.Classifier
	calendar      provider.CalendarProvider
	schedulerLLM  llm.AgentClient
	info          *info.Responder
	general       *general.Responder
	composer      *composer.Composer
	schedulerIter int
}

// New assembles a Graph from its node collaborators. schedulerMaxIterations
// bounds the scheduler sub-agent's tool loop; <= 0 uses the scheduler's
// default.
func New(
	consentGate *consent.Gate,
	toneBuilder *tone.Builder,
	kbBuilder *knowledge.Builder,
	classifierAgent *classifier.Classifier,
	calendar provider.CalendarProvider,
	schedulerLLM llm.AgentClient,
	infoResponder *info.Responder,
	generalResponder *general.Responder,
	composerAgent *composer.Composer,
	schedulerMaxIterations int,
) *Graph {
	return &Graph{
		consentGate:   consentGate,
		toneBuilder:   toneBuilder,
		kbBuilder:     kbBuilder,
		classifier:    classifierAgent,
		calendar:      calendar,
		schedulerLLM:  schedulerLLM,
		info:          infoResponder,
		general:       generalResponder,
		composer:      composerAgent,
		schedulerIter: schedulerMaxIterations,
	}
}

// Run executes one email through fetch_tone -> classify -> {schedule |
// info | general | no_response} -> compose. A panic anywhere in a node
// is recovered and reported as response_type=error rather than crashing
// the caller's request.
func (g *Graph) Run(ctx context.Context, req Request) (resp model.DraftResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = model.DraftResponse{
				ResponseType: model.ResponseError,
				Message:      fmt.Sprintf("internal error: %v", r),
			}
			err = nil
		}
	}()

	runID := uuid.NewString()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(runID),
		UserEmail: logger.Ptr(req.UserAddress),
		Component: "engine.graph",
	})

	ok, reason, _ := g.consentGate.Validate(req.PrimaryToken, model.ScopeEmailRead, req.UserID)
	if !ok {
		return model.DraftResponse{}, engineerr.New(engineerr.KindConsentDenied,
			fmt.Errorf("%w: %s", engineerr.ErrConsentDenied, reason))
	}

	hasKBConsent := false
	if req.KBToken != "" {
		if kbOK, _, _ := g.consentGate.Validate(req.KBToken, model.ScopeKnowledgeBaseRead, req.UserID); kbOK {
			hasKBConsent = true
		}
	}
	if !hasKBConsent {
		slog.DebugContext(ctx, "graph: downgrading run without knowledge base access",
			"error", engineerr.New(engineerr.KindKBConsentMissing, engineerr.ErrKBConsentMissing))
	}

	toneRetriever := g.fetchTone(ctx, req)
	plan := g.classify(ctx, req, hasKBConsent)

	if plan.AgentKind == model.AgentNoResponse {
		return model.DraftResponse{
			ResponseType: model.ResponseNoResponse,
			Message:      model.NoResponseSentinel,
			Reasoning:    plan.Reasoning,
			Confidence:   plan.Confidence,
		}, nil
	}

	var (
		outcome      model.AgentOutcome
		attachment   *model.Attachment
		responseType model.ResponseType
	)

	switch plan.AgentKind {
	case model.AgentScheduler:
		responseType = model.ResponseScheduler
		outcome = g.runScheduler(ctx, req)
	case model.AgentInfoResponder:
		responseType = model.ResponseInfoResponder
		outcome, attachment = g.runInfo(ctx, req, hasKBConsent)
	default:
		responseType = model.ResponseGeneralResponder
		outcome = g.runGeneral(ctx, req)
	}

	body, err := g.compose(ctx, outcome, req, toneRetriever, responseType)
	if err != nil {
		body = fmt.Sprintf("I drafted a response but failed to finalize its wording: %v", err)
	}

	return model.DraftResponse{
		ResponseType: responseType,
		Message:      body,
		Reasoning:    plan.Reasoning,
		Confidence:   plan.Confidence,
		Attachment:   attachment,
	}, nil
}

func (g *Graph) fetchTone(ctx context.Context, req Request) model.Retriever {
	if g.toneBuilder == nil {
		return nil
	}
	sc := logger.StartSpan(ctx, "engine.graph.fetch_tone")
	defer sc.End()

	retr, err := g.toneBuilder.Build(sc.Context(), req.AccessToken, tone.DefaultWindowDays)
	if err != nil {
		sc.RecordError(err)
		slog.WarnContext(ctx, "graph: tone build failed", "error", err)
		return nil
	}
	return retr
}

func (g *Graph) classify(ctx context.Context, req Request, hasKBConsent bool) model.ResponsePlan {
	sc := logger.StartSpan(ctx, "engine.graph.classify")
	defer sc.End()
	sc.SetAttr("consent.email_read", "granted")
	sc.SetAttr("consent.knowledge_base_read", grantLabel(hasKBConsent))

	plan := g.classifier.Classify(sc.Context(), req.Email, req.History)
	sc.SetAttr("plan.agent_kind", string(plan.AgentKind))
	return plan
}

func (g *Graph) runScheduler(ctx context.Context, req Request) model.AgentOutcome {
	sc := logger.StartSpan(ctx, "engine.graph.schedule")
	defer sc.End()

	tools := scheduler.NewTools(g.calendar, req.AccessToken)
	sched := scheduler.New(g.schedulerLLM, tools, g.schedulerIter)

	text, err := sched.Run(sc.Context(), req.Email, req.UserHint, req.Email.SenderAddress, req.UserAddress)
	if err != nil {
		sc.RecordError(err)
		return model.AgentOutcome{Text: fmt.Sprintf("I couldn't complete scheduling this: %v", err)}
	}
	return model.AgentOutcome{Text: text}
}

func (g *Graph) runInfo(ctx context.Context, req Request, hasKBConsent bool) (model.AgentOutcome, *model.Attachment) {
	sc := logger.StartSpan(ctx, "engine.graph.info")
	defer sc.End()
	ctx = sc.Context()

	// The KB directory is resolved only under a validated KB consent;
	// without it neither the retriever build nor an ATTACH_FILE lookup may
	// touch the user's files.
	var kbRetriever model.Retriever
	var kbDir string
	if g.kbBuilder != nil && hasKBConsent {
		kbDir = filepath.Join(g.kbBuilder.BaseDir, knowledge.SanitizeDir(req.UserAddress))
		retr, err := g.kbBuilder.Build(ctx, req.UserAddress, true)
		if err != nil {
			slog.WarnContext(ctx, "graph: knowledge build failed", "error", err)
		}
		kbRetriever = retr
	}

	outcome, attachment, err := g.info.Respond(ctx, info.Input{
		Query:       req.Email.Body,
		DocBytes:    req.DocBytes,
		DocFilename: req.DocFilename,
		KBRetriever: kbRetriever,
		KBDirectory: kbDir,
	})
	if err != nil {
		sc.RecordError(err)
		return model.AgentOutcome{Text: fmt.Sprintf("I couldn't look that up: %v", err)}, nil
	}
	return outcome, attachment
}

func (g *Graph) runGeneral(ctx context.Context, req Request) model.AgentOutcome {
	sc := logger.StartSpan(ctx, "engine.graph.general")
	defer sc.End()
	return g.general.Respond(sc.Context(), req.Email, req.UserHint, req.History)
}

func (g *Graph) compose(ctx context.Context, outcome model.AgentOutcome, req Request, toneRetriever model.Retriever, responseType model.ResponseType) (string, error) {
	sc := logger.StartSpan(ctx, "engine.graph.compose")
	defer sc.End()
	sc.SetAttr("response_type", string(responseType))

	body, err := g.composer.Compose(sc.Context(), outcome, req.Email, req.UserName, toneRetriever)
	if err != nil {
		sc.RecordError(err)
	}
	return body, err
}

func grantLabel(granted bool) string {
	if granted {
		return "granted"
	}
	return "absent"
}
