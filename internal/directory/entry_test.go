package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupNameFromDN(t *testing.T) {
	tests := []struct {
		dn      string
		want    string
		wantErr bool
	}{
		{dn: "CN=Facilities,OU=Door Access,DC=corp,DC=local", want: "Facilities"},
		{dn: "cn=Lab Techs,ou=groups,dc=example,dc=com", want: "Lab Techs"},
		{dn: `CN=R\2CD,OU=Groups,DC=corp`, want: "R,D"},
		{dn: "", wantErr: true},
		{dn: "not a dn", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.dn, func(t *testing.T) {
			got, err := GroupNameFromDN(tt.dn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupNames_MalformedFailsSet(t *testing.T) {
	names, err := GroupNames([]string{"CN=A,DC=corp", "CN=B,DC=corp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	_, err = GroupNames([]string{"CN=A,DC=corp", "garbage"})
	assert.Error(t, err)
}

func TestAccountDisabled(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		wantErr bool
	}{
		{value: "512", want: false},
		{value: "514", want: true},
		{value: "66048", want: false},
		{value: "66050", want: true},
		{value: "", want: false},
		{value: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := AccountDisabled(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
