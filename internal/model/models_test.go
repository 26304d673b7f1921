package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestHandoffRotatesOwnershipChain(t *testing.T) {
	fiche := &Fiche{
		CurrentOwner: OwnerSlot{UserID: strPtr("u1"), Role: RoleExaminateurInitial},
		NextOwner:    OwnerSlot{UserID: strPtr("u2"), Role: RolePremierDetenteur},
	}

	target := OwnerSlot{OrgID: strPtr("etg"), Role: RoleETG}
	fiche.Handoff(target)

	require.Equal(t, "u1", *fiche.PrevOwner.UserID)
	require.Equal(t, "u2", *fiche.CurrentOwner.UserID)
	require.Equal(t, "etg", *fiche.NextOwner.OrgID)

	// A second handoff keeps rotating; the oldest slot falls off
	fiche.Handoff(OwnerSlot{})
	require.Equal(t, "u2", *fiche.PrevOwner.UserID)
	require.Equal(t, "etg", *fiche.CurrentOwner.OrgID)
	require.True(t, fiche.NextOwner.IsEmpty())
}

func TestIntermediaireIDIsDeterministic(t *testing.T) {
	first := IntermediaireID("r1", "etg", 1)
	require.Equal(t, first, IntermediaireID("r1", "etg", 1))
	require.NotEqual(t, first, IntermediaireID("r1", "etg", 2))
	require.NotEqual(t, first, IntermediaireID("r2", "etg", 1))
	require.NotEqual(t, first, IntermediaireID("r1", "collecteur", 1))
}

func TestUserMembershipHelpers(t *testing.T) {
	user := &User{
		Base:   Base{UUID: "u1"},
		Roles:  []Role{RoleExaminateurInitial, RolePremierDetenteur},
		OrgIDs: []string{"o1"},
	}

	require.True(t, user.HasRole(RolePremierDetenteur))
	require.False(t, user.HasRole(RoleSVI))
	require.True(t, user.WorksFor("o1"))
	require.False(t, user.WorksFor("o2"))
}

func TestIsOrgRole(t *testing.T) {
	require.True(t, RoleETG.IsOrgRole())
	require.True(t, RoleCollecteurPro.IsOrgRole())
	require.True(t, RoleSVI.IsOrgRole())
	require.False(t, RoleExaminateurInitial.IsOrgRole())
	require.False(t, RolePremierDetenteur.IsOrgRole())
}
