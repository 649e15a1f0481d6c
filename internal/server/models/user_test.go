package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_ProfileOmitsSecrets(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{
		ID:           "u-1",
		UserName:     "neo",
		Email:        "neo@x.com",
		FullName:     "Neo",
		Avatar:       "http://media/neo.png",
		PasswordHash: "$2a$10$secret",
		RefreshToken: "refresh",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	b, err := json.Marshal(u.Profile())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))

	assert.Equal(t, "u-1", fields["_id"])
	assert.Equal(t, "neo", fields["username"])
	assert.Equal(t, "", fields["coverImage"])
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "passwordHash")
	assert.NotContains(t, fields, "refreshToken")
	assert.NotContains(t, string(b), "secret")
}
