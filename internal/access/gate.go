package access

import (
	"github.com/opsdesk/backend/pkg/metrics"
)

// Permission names one fine-grained capability.
type Permission struct {
	Action   string
	Module   string
	Resource string
}

// Requirement declares what a guarded region needs. Zero value allows everyone.
type Requirement struct {
	PlatformAdmin bool
	OrgAdmin      bool
	Module        string
	Permission    *Permission
	// Omit drops the region entirely on deny instead of rendering the fallback.
	Omit bool
}

// Reason identifies the first check that denied access.
type Reason string

const (
	ReasonAllowed           Reason = "allowed"
	ReasonPlatformAdmin     Reason = "platform_admin_required"
	ReasonOrgAdmin          Reason = "org_admin_required"
	ReasonModuleMissing     Reason = "module_not_subscribed"
	ReasonPermissionMissing Reason = "permission_not_granted"
)

// Decision is the outcome of evaluating a Requirement.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// Evaluate applies the checks in order: platform admin, organization admin,
// module, permission. The first failing check denies.
func Evaluate(snap *Snapshot, req Requirement) Decision {
	switch {
	case req.PlatformAdmin && !snap.IsPlatformAdmin():
		return Decision{Reason: ReasonPlatformAdmin}
	case req.OrgAdmin && !snap.IsOrgAdmin():
		return Decision{Reason: ReasonOrgAdmin}
	case req.Module != "" && !snap.HasModule(req.Module):
		return Decision{Reason: ReasonModuleMissing}
	case req.Permission != nil && !snap.Can(req.Permission.Action, req.Permission.Module, req.Permission.Resource):
		return Decision{Reason: ReasonPermissionMissing}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

// Gate evaluates requirements and counts every decision.
type Gate struct {
	metrics *metrics.Metrics
}

// NewGate creates a Gate. m may be nil.
func NewGate(m *metrics.Metrics) *Gate {
	return &Gate{metrics: m}
}

// Check evaluates req against snap.
func (g *Gate) Check(snap *Snapshot, req Requirement) Decision {
	d := Evaluate(snap, req)
	if g != nil {
		g.metrics.ObserveGate(d.Allowed, string(d.Reason))
	}
	return d
}

// Render runs children only when allowed. On deny it runs fallback, unless
// req.Omit is set or fallback is nil, in which case nothing runs.
func (g *Gate) Render(snap *Snapshot, req Requirement, children, fallback func()) Decision {
	d := g.Check(snap, req)
	switch {
	case d.Allowed:
		if children != nil {
			children()
		}
	case !req.Omit && fallback != nil:
		fallback()
	}
	return d
}
