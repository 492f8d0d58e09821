package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name  string
		email string
		role  Role
		hash  string
		want  error
	}{
		{"valid", "Ana@Oficina.com", RoleAdmin, "h", nil},
		{"bad email", "ana", RoleAdmin, "h", domain.ErrInvalidEmail},
		{"bad role", "ana@oficina.com", "owner", "h", ErrInvalidRole},
		{"no hash", "ana@oficina.com", RoleMechanic, "", ErrMissingHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New("Ana", tt.email, tt.role, tt.hash)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ana@oficina.com", u.Email)
			assert.True(t, u.IsActive())
		})
	}
}

func TestUserSpecifications(t *testing.T) {
	ana, _ := New("Ana", "ana@oficina.com", RoleAdmin, "h")
	bia, _ := New("Bia", "bia@oficina.com", RoleMechanic, "h")
	caio, _ := New("Caio", "caio@oficina.com", RoleAttendant, "h")
	caio.Deactivate()
	src := query.FromSlice([]*User{ana, bia, caio})
	ctx := context.Background()

	q, err := query.Evaluate(src, NewByEmail(" BIA@oficina.com"))
	require.NoError(t, err)
	got, err := q.SingleOrDefault(ctx)
	require.NoError(t, err)
	assert.Same(t, bia, got)

	staff, err := query.And[User](NewByRole(RoleMechanic, RoleAttendant), NewActive())
	require.NoError(t, err)
	q, err = query.Evaluate(src, staff)
	require.NoError(t, err)
	all, err := q.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*User{bia}, all)
}
