package submit

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"nerisbridge/internal/config"
	"nerisbridge/internal/neris"
	"nerisbridge/internal/report"
)

// compositeIncidentIDPattern is the external system's compound incident
// identifier: department id, freeform segment, 10-digit timestamp.
var compositeIncidentIDPattern = regexp.MustCompile(`^FD\d{8}\|[\w\-:]+\|\d{10}$`)

// embeddedIncidentIDPattern finds composite identifiers inside free text,
// such as a 409 response's detail message.
var embeddedIncidentIDPattern = regexp.MustCompile(`FD\d{8}\|[\w\-:]+\|\d{10}`)

// ReasonMissingIncidentIDHint is recorded when a conflict was eligible for
// the update fallback but no usable alternate identifier could be found.
const ReasonMissingIncidentIDHint = "missing-valid-incident-neris-id-hint"

// Request is one inbound validate/export request.
type Request struct {
	Report   report.FormValues       `json:"report"`
	Snapshot report.IncidentSnapshot `json:"snapshot"`
	Options  Options                 `json:"options"`
	// NerisID is the direct body hint for the conflict fallback.
	NerisID string `json:"nerisId"`
}

type Options struct {
	DisableFallback bool `json:"disableFallback"`
	// ExistingIncidentID is the integration-supplied hint, highest priority
	// among fallback candidates.
	ExistingIncidentID string `json:"existingIncidentId"`
}

// FallbackResult records whether the create-then-update conflict path was
// attempted and how it went. Built per submission, never stored.
type FallbackResult struct {
	Attempted  bool   `json:"attempted"`
	Succeeded  bool   `json:"succeeded"`
	IncidentID string `json:"incident_id,omitempty"`
	Source     string `json:"source,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// PermissionDiagnostics is attached to 403 responses to help operators tell
// a missing write grant apart from a token that cannot see the entity at all.
type PermissionDiagnostics struct {
	EntityListed       bool     `json:"entity_listed"`
	AccessibleEntities []string `json:"accessible_entities,omitempty"`
	Hint               string   `json:"hint"`
	Error              string   `json:"error,omitempty"`
}

// Outcome is the unified result of a validate or export request: the final
// upstream status and body plus everything needed to debug the submission.
type Outcome struct {
	AttemptID   string                  `json:"attempt_id"`
	Status      int                     `json:"status"`
	Body        map[string]any          `json:"body"`
	Payload     *report.IncidentPayload `json:"payload,omitempty"`
	Fallback    *FallbackResult         `json:"fallback,omitempty"`
	Permissions *PermissionDiagnostics  `json:"permissions,omitempty"`
}

type Orchestrator struct {
	cfg    config.Config
	client *neris.Client
	logger *log.Logger
}

func New(cfg config.Config, client *neris.Client, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "nerisbridge ", log.LstdFlags|log.LUTC)
	}
	return &Orchestrator{cfg: cfg, client: client, logger: logger}
}

func (o *Orchestrator) build(req Request) (*report.BuiltReport, error) {
	return report.Build(report.BuildInput{
		Report:   req.Report,
		Snapshot: req.Snapshot,
		Defaults: report.Defaults{
			EntityID:         o.cfg.EntityID,
			DepartmentID:     o.cfg.DepartmentID,
			State:            o.cfg.DefaultState,
			Country:          o.cfg.DefaultCountry,
			UTCOffsetMinutes: o.cfg.UTCOffsetMinutes,
		},
	})
}

// Validate builds the payload and calls the external validate endpoint
// without creating anything.
func (o *Orchestrator) Validate(ctx context.Context, req Request) (Outcome, error) {
	attemptID := uuid.NewString()
	built, err := o.build(req)
	if err != nil {
		return Outcome{}, err
	}
	result, err := o.client.ValidateIncident(ctx, built.EntityID, built.Payload)
	if err != nil {
		return Outcome{}, err
	}
	o.logger.Printf("attempt=%s validate entity=%s status=%d", attemptID, built.EntityID, result.StatusCode)
	return Outcome{
		AttemptID: attemptID,
		Status:    result.StatusCode,
		Body:      result.Body,
		Payload:   &built.Payload,
	}, nil
}

// Export executes the full submission protocol: create, then on an eligible
// conflict an update against the best alternate incident identifier, with a
// permission diagnosis attached to 403s.
func (o *Orchestrator) Export(ctx context.Context, req Request) (Outcome, error) {
	attemptID := uuid.NewString()
	built, err := o.build(req)
	if err != nil {
		return Outcome{}, err
	}

	created, err := o.client.CreateIncident(ctx, built.EntityID, built.Payload)
	if err != nil {
		return Outcome{}, err
	}
	o.logger.Printf("attempt=%s create entity=%s status=%d", attemptID, built.EntityID, created.StatusCode)

	out := Outcome{
		AttemptID: attemptID,
		Status:    created.StatusCode,
		Body:      created.Body,
		Payload:   &built.Payload,
	}

	if eligibleForFallback(created, req.Options) {
		fb := &FallbackResult{Attempted: true}
		out.Fallback = fb
		if candidate, source := pickFallbackCandidate(req, built, created); candidate != "" {
			fb.IncidentID = candidate
			fb.Source = source
			updated, err := o.client.UpdateIncident(ctx, built.EntityID, candidate, built.Payload)
			if err != nil {
				return Outcome{}, err
			}
			o.logger.Printf("attempt=%s update entity=%s incident=%s status=%d", attemptID, built.EntityID, candidate, updated.StatusCode)
			fb.Succeeded = updated.OK()
			out.Status = updated.StatusCode
			out.Body = updated.Body
		} else {
			fb.Reason = ReasonMissingIncidentIDHint
			o.logger.Printf("attempt=%s fallback skipped: %s", attemptID, ReasonMissingIncidentIDHint)
		}
	}

	if out.Status == http.StatusForbidden {
		out.Permissions = o.diagnosePermissions(ctx, built.EntityID)
	}
	return out, nil
}

// eligibleForFallback: a create rejected with exactly 409 whose detail names
// one of the known resubmission refusals, unless the caller disabled the
// fallback.
func eligibleForFallback(created neris.CallResult, opts Options) bool {
	if opts.DisableFallback || created.StatusCode != http.StatusConflict {
		return false
	}
	detail := created.Detail()
	return strings.Contains(detail, "cannot be resubmitted") || strings.Contains(detail, "status of approved")
}

// pickFallbackCandidate collects alternate incident identifiers from every
// hint source in priority order, keeps only well-formed composite ids, and
// prefers one whose department prefix matches the resolved entity.
func pickFallbackCandidate(req Request, built *report.BuiltReport, created neris.CallResult) (string, string) {
	type candidate struct {
		id     string
		source string
	}
	var candidates []candidate
	seen := make(map[string]bool)
	add := func(id, source string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] || !compositeIncidentIDPattern.MatchString(id) {
			return
		}
		seen[id] = true
		candidates = append(candidates, candidate{id: id, source: source})
	}

	add(req.Options.ExistingIncidentID, "options")
	add(req.Report.Get("existingNerisId"), "form")
	add(req.NerisID, "body")
	for _, id := range embeddedIncidentIDPattern.FindAllString(created.Detail(), -1) {
		add(id, "detail")
	}
	if v, ok := created.Body["neris_id"].(string); ok {
		add(v, "response")
	}

	if len(candidates) == 0 {
		return "", ""
	}
	prefix := built.EntityID + "|"
	for _, c := range candidates {
		if strings.HasPrefix(c.id, prefix) {
			return c.id, c.source
		}
	}
	return candidates[0].id, candidates[0].source
}

// diagnosePermissions runs a supplementary entity-listing call. Its own
// failure never masks the original 403.
func (o *Orchestrator) diagnosePermissions(ctx context.Context, entityID string) *PermissionDiagnostics {
	diag := &PermissionDiagnostics{}
	listed, err := o.client.ListEntities(ctx)
	if err != nil {
		diag.Error = err.Error()
		diag.Hint = "entity listing failed; unable to determine token permissions"
		return diag
	}
	if !listed.OK() {
		diag.Error = listed.Detail()
		diag.Hint = "entity listing was rejected; the token may be unusable for any entity"
		return diag
	}
	diag.AccessibleEntities = extractEntityIDs(listed.Body)
	for _, id := range diag.AccessibleEntities {
		if id == entityID {
			diag.EntityListed = true
			break
		}
	}
	if diag.EntityListed {
		diag.Hint = "the token can see this entity but lacks write permission for it"
	} else {
		diag.Hint = "the token is not authorized for this entity at all"
	}
	return diag
}

// extractEntityIDs pulls entity identifiers out of the listing response,
// tolerating both bare-string lists and object lists.
func extractEntityIDs(body map[string]any) []string {
	items, ok := body["data"].([]any)
	if !ok {
		if alt, ok := body["entities"].([]any); ok {
			items = alt
		}
	}
	var ids []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if report.ValidEntityID(v) {
				ids = append(ids, v)
			}
		case map[string]any:
			for _, key := range []string{"neris_id", "entity_id", "id"} {
				if s, ok := v[key].(string); ok && report.ValidEntityID(s) {
					ids = append(ids, s)
					break
				}
			}
		}
	}
	return ids
}

// GetIncident and ListEntities passthroughs for the debug surface.
func (o *Orchestrator) GetIncident(ctx context.Context, entityID, incidentID string) (neris.CallResult, error) {
	return o.client.GetIncident(ctx, entityID, incidentID)
}

func (o *Orchestrator) ListEntities(ctx context.Context) (neris.CallResult, error) {
	return o.client.ListEntities(ctx)
}
