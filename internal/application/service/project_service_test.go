package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

func TestProjectService_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	project, err := env.projects.CreateProject(ctx, "  Basement  ")
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "Basement", project.Name)

	got, err := env.projects.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Name, got.Name)

	_, err = env.projects.CreateProject(ctx, " ")
	assert.True(t, errors.Is(err, entity.ErrInvalidInput))

	_, err = env.projects.GetProject(ctx, "nope")
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

func TestProjectService_Materials(t *testing.T) {
	tests := []struct {
		name     string
		req      CreateMaterialRequest
		wantUnit entity.UnitType
		wantErr  error
	}{
		{"valid", CreateMaterialRequest{Name: "Plywood", UnitType: "Sheet", DefaultUnitPrice: 42.5}, entity.UnitSheet, nil},
		{"unit defaults to other", CreateMaterialRequest{Name: "Misc"}, entity.UnitOther, nil},
		{"missing name", CreateMaterialRequest{UnitType: "each"}, "", entity.ErrInvalidInput},
		{"unknown unit", CreateMaterialRequest{Name: "Rope", UnitType: "fathom"}, "", entity.ErrInvalidInput},
		{"negative price", CreateMaterialRequest{Name: "Tile", DefaultUnitPrice: -1}, "", entity.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			material, err := env.projects.CreateMaterial(context.Background(), testProjectID, tt.req)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnit, material.UnitType)
			assert.Equal(t, testProjectID, material.ProjectID)

			materials, err := env.projects.ListMaterials(context.Background(), testProjectID)
			require.NoError(t, err)
			assert.Len(t, materials, 3)
		})
	}
}

func TestProjectService_MaterialUnknownProject(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.projects.CreateMaterial(context.Background(), "nope", CreateMaterialRequest{Name: "Studs"})
	assert.True(t, errors.Is(err, entity.ErrNotFound))

	_, err = env.projects.ListMaterials(context.Background(), "nope")
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}
