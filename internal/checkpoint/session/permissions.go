package session

import "strings"

type Module string

type Action string

const (
	ModuleEntries Module = "entries"
	ModuleBadges  Module = "badges"
	ModuleAlerts  Module = "alerts"
)

const (
	ActionSubmit     Action = "submit"
	ActionExit       Action = "exit"
	ActionRead       Action = "read"
	ActionIssue      Action = "issue"
	ActionReportLost Action = "report_lost"
	ActionManage     Action = "manage"
	ActionResolve    Action = "resolve"
	ActionOverride   Action = "override"

	// ActionAll grants every action of a module.
	ActionAll Action = "*"
)

// Grants is the {Module x Action} permission set of an operator.
type Grants map[Module]map[Action]struct{}

// NewGrants builds Grants from the module -> actions form used in the
// operators file.
func NewGrants(spec map[string][]string) Grants {
	g := make(Grants, len(spec))
	for m, actions := range spec {
		mod := Module(strings.ToLower(strings.TrimSpace(m)))
		set := g[mod]
		if set == nil {
			set = make(map[Action]struct{}, len(actions))
			g[mod] = set
		}
		for _, a := range actions {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				set[Action(a)] = struct{}{}
			}
		}
	}
	return g
}

func (g Grants) Allows(m Module, a Action) bool {
	set, ok := g[m]
	if !ok {
		return false
	}
	if _, ok := set[ActionAll]; ok {
		return true
	}
	_, ok = set[a]
	return ok
}

func (g Grants) clone() Grants {
	out := make(Grants, len(g))
	for m, set := range g {
		cp := make(map[Action]struct{}, len(set))
		for a := range set {
			cp[a] = struct{}{}
		}
		out[m] = cp
	}
	return out
}
