package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   Viewer
	}{
		{
			name:   "farmer",
			claims: Claims{ID: "f-1", Name: "Nguyễn Văn A", Role: "farmer"},
			want:   Farmer{UserID: "f-1", Name: "Nguyễn Văn A"},
		},
		{
			name:   "buyer",
			claims: Claims{ID: "b-1", Name: "Phạm D", Role: " BUYER "},
			want:   Buyer{UserID: "b-1", Name: "Phạm D"},
		},
		{
			name:   "central admin",
			claims: Claims{ID: "a-1", Name: "Trần Thị B", Role: "ADMIN", AdminLevel: "central"},
			want:   Admin{UserID: "a-1", Name: "Trần Thị B", Level: LevelCentral},
		},
		{
			name:   "admin without level is regional",
			claims: Claims{ID: "a-2", Name: "Lê C", Role: "ADMIN", AssignedArea: "Tỉnh Lâm Đồng"},
			want:   Admin{UserID: "a-2", Name: "Lê C", Level: LevelRegional, AssignedArea: "Tỉnh Lâm Đồng"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromClaims(tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestFromClaims_Rejects(t *testing.T) {
	_, err := FromClaims(Claims{ID: "x", Role: "GUEST"})
	assert.Error(t, err)

	_, err = FromClaims(Claims{ID: "x", Role: "ADMIN", AdminLevel: "NATIONAL"})
	assert.Error(t, err)
}

func TestToClaimsRoundTrip(t *testing.T) {
	admin := Admin{UserID: "a-1", Name: "Trần Thị B", Level: LevelRegional, AssignedArea: "Tỉnh Lâm Đồng"}
	c := ToClaims(admin)
	assert.Equal(t, "ADMIN", c.Role)
	assert.Equal(t, "REGIONAL", c.AdminLevel)

	back, err := FromClaims(c)
	require.NoError(t, err)
	assert.Equal(t, admin, back)
	assert.False(t, back.(Admin).IsCentral())
}
