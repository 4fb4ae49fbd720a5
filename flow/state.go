package flow

import (
	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/session"
)

// State is the snapshot the presentation layer renders from. Slices
// are copies; mutating a snapshot never touches the orchestrator.
type State struct {
	CurrentStep Step
	Errors      []errors.State
	Warnings    []session.Warning
	Cart        []menu.CartItem
	CurrentBowl *menu.Bowl
	IsLoading   bool
}
