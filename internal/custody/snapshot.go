package custody

import (
	"github.com/betagouv/zacharie-sub006/internal/model"
)

// Snapshot is a single atomic view of the replicated domain state. All
// classification in this package reads from one snapshot only; it never mixes
// fields from two different snapshots.
type Snapshot struct {
	Fiches         map[string]*model.Fiche
	Carcasses      map[string]*model.Carcasse
	Intermediaires map[string]*model.Intermediaire
	Users          map[string]*model.User
	Organizations  map[string]*model.Organization
}

// Org returns the organization with the given id, or nil
func (s *Snapshot) Org(id *string) *model.Organization {
	if id == nil {
		return nil
	}
	return s.Organizations[*id]
}

// FicheIntermediaires returns the hops recorded for a fiche, from either the
// normalized map or the fiche's own embedded list (partially replicated
// snapshots may have one without the other).
func (s *Snapshot) FicheIntermediaires(fiche *model.Fiche) []*model.Intermediaire {
	var hops []*model.Intermediaire
	for _, hop := range s.Intermediaires {
		if hop.FicheID == fiche.UUID {
			hops = append(hops, hop)
		}
	}
	if len(hops) > 0 {
		return hops
	}
	for i := range fiche.Intermediaires {
		hops = append(hops, &fiche.Intermediaires[i])
	}
	return hops
}
